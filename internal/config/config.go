// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the database, the payment webhook secret,
// reconciliation timing, notification delivery, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "fanclub-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DatabaseConfig selects and locates the relational store.
type DatabaseConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file (sqlite driver)
	URL    string // DSN (postgres driver)
}

// StripeConfig holds webhook verification settings.
type StripeConfig struct {
	WebhookSecret      string        // STRIPE_WEBHOOK_SECRET (required)
	SignatureTolerance time.Duration // max signature age; 0 disables the check
}

// ReconcileConfig bounds the time spent on one payment event.
type ReconcileConfig struct {
	Timeout           time.Duration // whole reconciliation, per webhook delivery
	ClaimWait         time.Duration // wait for a competing delivery's outcome
	ClaimPollInterval time.Duration
	NotifyTimeout     time.Duration // per notification hand-off after commit
}

// SMTPConfig holds outbound mail settings. Host empty disables email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NotifyConfig controls the notification queue and its delivery channels.
type NotifyConfig struct {
	RedisURL         string // empty: in-process queue
	Queue            string // Redis list key
	TelegramBotToken string // empty: no Telegram delivery
	OpsChatID        int64  // operator alerts; 0 disables
	Workers          int
	MaxAttempts      int
	SMTP             SMTPConfig
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DB        DatabaseConfig
	Stripe    StripeConfig
	Reconcile ReconcileConfig
	Notify    NotifyConfig

	// Admin API bearer token; empty locks the admin API.
	AdminAPIToken string

	// Rate limiting (admin API)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Database
		DB: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(getenv("DB_DRIVER", "sqlite"))),
			Path:   getenv("DB_PATH", "fanclub.db"),
			URL:    getenv("DATABASE_URL", ""),
		},

		// Stripe
		Stripe: StripeConfig{
			WebhookSecret:      strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			SignatureTolerance: getdur("STRIPE_SIGNATURE_TOLERANCE", 5*time.Minute),
		},

		// Reconciliation
		Reconcile: ReconcileConfig{
			Timeout:           getdur("RECONCILE_TIMEOUT", 10*time.Second),
			ClaimWait:         getdur("CLAIM_WAIT", 2*time.Second),
			ClaimPollInterval: getdur("CLAIM_POLL_INTERVAL", 50*time.Millisecond),
			NotifyTimeout:     getdur("NOTIFY_TIMEOUT", 2*time.Second),
		},

		// Notifications
		Notify: NotifyConfig{
			RedisURL:         getenv("REDIS_URL", ""),
			Queue:            getenv("NOTIFY_QUEUE", "telegram-notifications"),
			TelegramBotToken: getenv("TELEGRAM_BOT_TOKEN", ""),
			OpsChatID:        getint64("OPS_CHAT_ID", 0),
			Workers:          getint("NOTIFY_WORKERS", 2),
			MaxAttempts:      getint("NOTIFY_MAX_ATTEMPTS", 3),
			SMTP: SMTPConfig{
				Host:     getenv("SMTP_HOST", ""),
				Port:     getint("SMTP_PORT", 587),
				Username: getenv("SMTP_USER", ""),
				Password: getenv("SMTP_PASS", ""),
				From:     getenv("SMTP_FROM", ""),
			},
		},

		AdminAPIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "fanclub-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DB.Driver)
	}
	if cfg.Stripe.WebhookSecret == "" {
		return cfg, errors.New("STRIPE_WEBHOOK_SECRET must not be empty")
	}
	if cfg.Stripe.SignatureTolerance < 0 {
		return cfg, errors.New("STRIPE_SIGNATURE_TOLERANCE must be >= 0")
	}
	if cfg.Reconcile.Timeout <= 0 || cfg.Reconcile.ClaimWait <= 0 || cfg.Reconcile.ClaimPollInterval <= 0 || cfg.Reconcile.NotifyTimeout <= 0 {
		return cfg, errors.New("RECONCILE_TIMEOUT, CLAIM_WAIT, CLAIM_POLL_INTERVAL and NOTIFY_TIMEOUT must be positive")
	}
	if cfg.Reconcile.ClaimWait >= cfg.Reconcile.Timeout {
		return cfg, errors.New("CLAIM_WAIT must be shorter than RECONCILE_TIMEOUT")
	}
	if cfg.Notify.Workers < 1 {
		return cfg, errors.New("NOTIFY_WORKERS must be >= 1")
	}
	if cfg.Notify.MaxAttempts < 1 {
		return cfg, errors.New("NOTIFY_MAX_ATTEMPTS must be >= 1")
	}
	if strings.TrimSpace(cfg.Notify.Queue) == "" {
		return cfg, errors.New("NOTIFY_QUEUE must not be empty")
	}
	if cfg.Notify.SMTP.Host != "" {
		if cfg.Notify.SMTP.Port < 1 || cfg.Notify.SMTP.Port > 65535 {
			return cfg, errors.New("SMTP_PORT must be in [1,65535]")
		}
		if strings.TrimSpace(cfg.Notify.SMTP.From) == "" {
			return cfg, errors.New("SMTP_FROM is required when SMTP_HOST is set")
		}
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getint64 parses ids such as Telegram chat ids, which can be negative for groups.
func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
