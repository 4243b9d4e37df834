package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/neuhubereco/odoo-brevo-sync/internal/admin"
	"github.com/neuhubereco/odoo-brevo-sync/internal/brevo"
	"github.com/neuhubereco/odoo-brevo-sync/internal/config"
	httpserver "github.com/neuhubereco/odoo-brevo-sync/internal/http"
	"github.com/neuhubereco/odoo-brevo-sync/internal/mapping"
	"github.com/neuhubereco/odoo-brevo-sync/internal/store"
	"github.com/neuhubereco/odoo-brevo-sync/internal/sync"
	"github.com/neuhubereco/odoo-brevo-sync/internal/webhook"
)

func main() {
	log.Println("Starting Brevo sync server...")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	st := store.New(pool)

	doc := mapping.Defaults()
	if cfg.Mapping.Path != "" {
		loaded, err := mapping.LoadFile(cfg.Mapping.Path)
		if err != nil {
			log.Fatalf("failed to load field mapping: %v", err)
		}
		doc = *loaded
	}
	table := mapping.NewTable(doc)
	if cfg.Mapping.Path != "" && cfg.Mapping.Watch {
		go func() {
			if err := mapping.Watch(ctx, cfg.Mapping.Path, table); err != nil && ctx.Err() == nil {
				log.Printf("[ERROR] mapping watcher stopped: %v", err)
			}
		}()
	}

	client := brevo.NewClient(brevo.Config{
		BaseURL:        cfg.Brevo.BaseURL,
		APIKey:         cfg.Brevo.APIKey,
		Limiter:        brevo.NewLimiter(cfg.Brevo.RatePerMinute, cfg.Brevo.Burst),
		MaxAttempts:    cfg.Brevo.MaxAttempts,
		AcquireTimeout: cfg.Webhook.AcquireTimeout,
	})

	engine := sync.NewEngine(st, table)
	batcher := sync.NewBatcher(client, engine, cfg.Sync.BatchSize)
	if cfg.Sync.Enabled {
		go batcher.RunPeriodic(ctx, cfg.Sync.Interval)
	}

	wh := webhook.NewHandler(engine, cfg.Webhook.Secret, cfg.Webhook.RequireSignature)
	adm := admin.NewHandler(cfg.AdminTokenHash, batcher, table, cfg.Mapping.Path, st.SyncLog)

	r := httpserver.NewRouter(cfg, st, wh, adm)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
