package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/neuhubereco/odoo-brevo-sync/internal/admin"
	"github.com/neuhubereco/odoo-brevo-sync/internal/config"
	"github.com/neuhubereco/odoo-brevo-sync/internal/http/ratelimit"
	"github.com/neuhubereco/odoo-brevo-sync/internal/metrics"
	"github.com/neuhubereco/odoo-brevo-sync/internal/store"
	"github.com/neuhubereco/odoo-brevo-sync/internal/webhook"
)

// NewRouter wires all HTTP routes: health probes, metrics, the webhook
// endpoints, and the token-guarded admin API.
func NewRouter(cfg *config.Config, st *store.Store, wh *webhook.Handler, adm *admin.Handler) http.Handler {
	r := chi.NewRouter()

	// Webhook endpoints: 10 requests per second per sender IP, burst of 30.
	webhookRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(10), 30, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(webhookRateLimiter.Middleware())
		r.Post("/webhook", wh.HandleEvent)
		r.Post("/booking", wh.HandleBooking)
	})

	if adm.Enabled() {
		r.Route("/admin", func(r chi.Router) {
			r.Use(adm.RequireToken)
			r.Post("/sync/contacts", adm.SyncContacts)
			r.Post("/sync/lists", adm.SyncLists)
			r.Post("/push", adm.Push)
			r.Post("/mapping/reload", adm.ReloadMapping)
			r.Get("/log", adm.RecentLog)
		})
	}

	return r
}
