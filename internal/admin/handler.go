// Package admin exposes operator endpoints for triggering sync passes,
// reloading the field mapping, and inspecting the sync log.
package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	httperrors "github.com/neuhubereco/odoo-brevo-sync/internal/http/errors"
	"github.com/neuhubereco/odoo-brevo-sync/internal/mapping"
	"github.com/neuhubereco/odoo-brevo-sync/internal/store"
	syncer "github.com/neuhubereco/odoo-brevo-sync/internal/sync"
)

// Handler serves the admin API. All routes require a bearer token checked
// against a bcrypt hash from configuration; with no hash configured the
// admin surface is disabled entirely.
type Handler struct {
	tokenHash   string
	batcher     *syncer.Batcher
	mappings    *mapping.Table
	mappingPath string
	logs        store.SyncLogRepository
}

func NewHandler(tokenHash string, batcher *syncer.Batcher, mappings *mapping.Table, mappingPath string, logs store.SyncLogRepository) *Handler {
	return &Handler{
		tokenHash:   tokenHash,
		batcher:     batcher,
		mappings:    mappings,
		mappingPath: mappingPath,
		logs:        logs,
	}
}

// Enabled reports whether an admin token hash is configured.
func (h *Handler) Enabled() bool {
	return h.tokenHash != ""
}

// RequireToken guards admin routes with a bearer token.
func (h *Handler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.tokenHash == "" {
			httperrors.Unauthorized(w, r, "admin API disabled")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			httperrors.Unauthorized(w, r, "missing bearer token")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h.tokenHash), []byte(token)); err != nil {
			httperrors.Unauthorized(w, r, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SyncContacts triggers a contact pull pass. With ?since=<RFC3339> only
// contacts modified after the instant are pulled.
func (h *Handler) SyncContacts(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httperrors.BadRequest(w, r, err, "invalid since parameter")
			return
		}
		since = &t
	}
	if err := h.batcher.SyncContacts(r.Context(), since); err != nil {
		httperrors.InternalError(w, r, err, "contact pull pass")
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// SyncLists triggers a list pull pass.
func (h *Handler) SyncLists(w http.ResponseWriter, r *http.Request) {
	if err := h.batcher.SyncLists(r.Context()); err != nil {
		httperrors.InternalError(w, r, err, "list pull pass")
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Push pushes locally modified contacts to the remote platform.
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	if err := h.batcher.PushPending(r.Context()); err != nil {
		httperrors.InternalError(w, r, err, "contact push pass")
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// ReloadMapping re-reads the mapping file and installs it if valid.
func (h *Handler) ReloadMapping(w http.ResponseWriter, r *http.Request) {
	if h.mappingPath == "" {
		httperrors.BadRequest(w, r, nil, "no mapping file configured")
		return
	}
	if err := h.mappings.ReloadFile(h.mappingPath); err != nil {
		httperrors.BadRequest(w, r, err, "mapping file rejected")
		return
	}
	httperrors.LogInfo(r, "field mapping reloaded")
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// RecentLog returns the newest sync log entries, default 50, capped at 500.
func (h *Handler) RecentLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httperrors.BadRequest(w, r, err, "invalid limit parameter")
			return
		}
		limit = n
	}
	if limit > 500 {
		limit = 500
	}
	entries, err := h.logs.Recent(r.Context(), limit)
	if err != nil {
		httperrors.InternalError(w, r, err, "read sync log")
		return
	}
	type logEntry struct {
		DeliveryID  string    `json:"delivery_id"`
		Operation   string    `json:"operation"`
		Direction   string    `json:"direction"`
		Outcome     string    `json:"outcome"`
		BrevoID     string    `json:"brevo_id,omitempty"`
		Email       string    `json:"email,omitempty"`
		Message     string    `json:"message"`
		ErrorDetail string    `json:"error_detail,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}
	out := make([]logEntry, 0, len(entries))
	for _, e := range entries {
		le := logEntry{
			DeliveryID: e.DeliveryID,
			Operation:  e.Operation,
			Direction:  e.Direction,
			Outcome:    e.Outcome,
			BrevoID:    e.BrevoID,
			Email:      e.Email,
			Message:    e.Message,
			CreatedAt:  e.CreatedAt,
		}
		if e.ErrorDetail != nil {
			le.ErrorDetail = *e.ErrorDetail
		}
		out = append(out, le)
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}
