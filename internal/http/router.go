// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and the admin API's compression, rate limiting and
// bearer auth.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - The payment webhook sees the raw body untouched by any middleware
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/docs"
	"github.com/tbourn/fanclub-backend/internal/config"
	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/http/handlers"
	"github.com/tbourn/fanclub-backend/internal/http/middleware"
	"github.com/tbourn/fanclub-backend/internal/payments"
	"github.com/tbourn/fanclub-backend/internal/repo"
	"github.com/tbourn/fanclub-backend/internal/services"
)

// WebhookPath is where the payment gateway delivers events. It is outside
// the versioned API base so the dashboard URL never changes with it.
const WebhookPath = "/webhook/stripe"

// tourRepoShim adapts the repository free functions to the services.TourRepo
// interface expected by the TourService.
type tourRepoShim struct{}

// GetTour proxies repo.GetTour.
func (tourRepoShim) GetTour(ctx context.Context, db *gorm.DB, id int64) (*domain.Tour, error) {
	return repo.GetTour(ctx, db, id)
}

// CountTours proxies repo.CountTours (pagination support).
func (tourRepoShim) CountTours(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return repo.CountTours(ctx, db, status)
}

// ListToursPage proxies repo.ListToursPage (pagination support).
func (tourRepoShim) ListToursPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Tour, error) {
	return repo.ListToursPage(ctx, db, status, offset, limit)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. notifier receives post-commit notifications from reconciliation.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and signature scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//
// The admin group adds gzip, a per-IP rate limiter and bearer auth.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, notifier services.Notifier, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			payments.SignatureHeader,
			"X-Telegram-Bot-Api-Secret-Token",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB; gateway events are a few KiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	adminPrefix := joinPath(apiBase, "/admin")

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStore:         false,
		NoStorePrefixes: []string{adminPrefix},
		EnablePolicy:    true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/readiness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(db))

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/notifier
	verifier := payments.NewStripeAdapter(cfg.Stripe.WebhookSecret, cfg.Stripe.SignatureTolerance)

	recon := services.NewReconciliationService(db, notifier)
	if cfg.Reconcile.ClaimWait > 0 {
		recon.ClaimWait = cfg.Reconcile.ClaimWait
	}
	if cfg.Reconcile.ClaimPollInterval > 0 {
		recon.ClaimPollInterval = cfg.Reconcile.ClaimPollInterval
	}
	if cfg.Reconcile.NotifyTimeout > 0 {
		recon.NotifyTimeout = cfg.Reconcile.NotifyTimeout
	}

	ledger := &services.LedgerService{DB: db}
	tours := services.NewTourService(db, tourRepoShim{})

	h := handlers.New(verifier, recon, ledger, tours)
	if cfg.Reconcile.Timeout > 0 {
		h.ReconcileTimeout = cfg.Reconcile.Timeout
	}

	// Payment gateway
	r.POST(WebhookPath, h.StripeWebhook)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		api.GET("/tours", h.ListTours)
		api.GET("/tours/:id", h.GetTour)
	}

	// Operator API
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	admin := api.Group("/admin",
		gzip.Gzip(gzip.DefaultCompression),
		rl.Handler(),
		middleware.AdminAuth(cfg.AdminAPIToken),
	)
	{
		admin.GET("/reconciliations", h.ListReconciliations)
		admin.GET("/reconciliations/summary", h.ReconciliationsSummary)
		admin.GET("/reconciliations/:id", h.GetReconciliation)
	}
}

// readiness reports 503 until the database answers a ping.
func readiness(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeStoreUnavailable, "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath joins a normalized base path and a rooted suffix.
func joinPath(base, suffix string) string {
	if base == "" || base == "/" {
		return suffix
	}
	return base + suffix
}
