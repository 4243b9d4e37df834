package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings. Everything is sourced from the
// environment; main optionally loads a .env file first.
type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	Brevo struct {
		APIKey        string
		BaseURL       string
		RatePerMinute int
		Burst         int
		MaxAttempts   int
	}

	Webhook struct {
		Secret           string
		RequireSignature bool
		// AcquireTimeout bounds how long a webhook-triggered outbound call
		// may wait for a rate-limiter token before failing.
		AcquireTimeout time.Duration
	}

	Sync struct {
		Enabled   bool
		Interval  time.Duration
		BatchSize int
	}

	Mapping struct {
		Path  string
		Watch bool
	}

	// AdminTokenHash is the bcrypt hash of the bearer token protecting the
	// operational endpoints. When empty those endpoints are disabled.
	AdminTokenHash string

	PrometheusEnabled bool
	TrustedProxies    []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				user, password, host, port, name, sslmode)
		}
	}

	cfg.Brevo.APIKey = os.Getenv("BREVO_API_KEY")
	cfg.Brevo.BaseURL = getenvDefault("BREVO_BASE_URL", "https://api.brevo.com/v3")
	cfg.Brevo.RatePerMinute = getenvInt("BREVO_RATE_PER_MINUTE", 300)
	cfg.Brevo.Burst = getenvInt("BREVO_RATE_BURST", 20)
	cfg.Brevo.MaxAttempts = getenvInt("BREVO_MAX_ATTEMPTS", 4)

	cfg.Webhook.Secret = os.Getenv("BREVO_WEBHOOK_SECRET")
	cfg.Webhook.RequireSignature = getenvBool("BREVO_WEBHOOK_REQUIRE_SIGNATURE", false)
	cfg.Webhook.AcquireTimeout = getenvDuration("BREVO_WEBHOOK_ACQUIRE_TIMEOUT", 5*time.Second)

	cfg.Sync.Enabled = getenvBool("SYNC_ENABLED", true)
	cfg.Sync.Interval = getenvDuration("SYNC_INTERVAL", 15*time.Minute)
	cfg.Sync.BatchSize = getenvInt("SYNC_BATCH_SIZE", 100)

	cfg.Mapping.Path = os.Getenv("FIELD_MAPPING_PATH")
	cfg.Mapping.Watch = getenvBool("FIELD_MAPPING_WATCH", true)

	cfg.AdminTokenHash = os.Getenv("ADMIN_TOKEN_HASH")
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.Brevo.APIKey == "" {
		return nil, errors.New("BREVO_API_KEY is required")
	}
	if cfg.Brevo.RatePerMinute < 1 {
		return nil, fmt.Errorf("BREVO_RATE_PER_MINUTE must be positive (got %d)", cfg.Brevo.RatePerMinute)
	}
	if cfg.Sync.Interval < time.Minute {
		return nil, fmt.Errorf("SYNC_INTERVAL must be at least 1m (got %s)", cfg.Sync.Interval)
	}
	if cfg.Sync.BatchSize < 1 || cfg.Sync.BatchSize > 1000 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be between 1 and 1000 (got %d)", cfg.Sync.BatchSize)
	}
	if cfg.Webhook.RequireSignature && cfg.Webhook.Secret == "" {
		return nil, errors.New("BREVO_WEBHOOK_SECRET is required when BREVO_WEBHOOK_REQUIRE_SIGNATURE is set")
	}

	if !cfg.Webhook.RequireSignature {
		fmt.Println("WARNING: Webhook signature verification is DISABLED. Anyone who knows the endpoint URL can inject sync events - not recommended for public environments.")
	}
	if cfg.AdminTokenHash == "" {
		fmt.Println("WARNING: ADMIN_TOKEN_HASH not set. Manual sync and mapping reload endpoints are disabled.")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
