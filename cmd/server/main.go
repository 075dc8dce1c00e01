// Command server runs the fan club backend: the payment webhook, the public
// tour catalog, the operator API and the notification workers.
//
// @title                      Fan Club Backend API
// @version                    1.0
// @description                Payment reconciliation, tour catalog and operator API for the fan club.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/fanclub-backend/internal/config"
	httpapi "github.com/tbourn/fanclub-backend/internal/http"
	"github.com/tbourn/fanclub-backend/internal/notify"
	"github.com/tbourn/fanclub-backend/internal/observability"
	"github.com/tbourn/fanclub-backend/internal/repo"
	"github.com/tbourn/fanclub-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty)
	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(repo.Options{
		Driver: cfg.DB.Driver,
		Path:   cfg.DB.Path,
		DSN:    cfg.DB.URL,
		Trace:  cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	queue, closeQueue := openQueue(ctx, cfg.Notify)
	worker := &notify.Worker{
		Queue:       queue,
		Directory:   notify.UserDirectory{DB: db},
		OpsChatID:   cfg.Notify.OpsChatID,
		Concurrency: cfg.Notify.Workers,
		MaxAttempts: cfg.Notify.MaxAttempts,
		Backoff:     time.Second,
	}
	if cfg.Notify.TelegramBotToken != "" {
		tg, err := notify.NewTelegramMessenger(cfg.Notify.TelegramBotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram bot init")
		}
		worker.Messenger = tg
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set; notifications are logged only")
	}
	if s := cfg.Notify.SMTP; s.Host != "" {
		worker.Mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     s.Host,
			Port:     s.Port,
			Username: s.Username,
			Password: s.Password,
			From:     s.From,
		})
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(workerCtx)
	}()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	httpapi.RegisterRoutes(r, db, notify.NewQueueNotifier(queue), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Drain in-flight webhooks first so their notifications are queued
	// before the workers stop.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	stopWorkers()
	wg.Wait()
	closeQueue()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("shutdown complete")
}

// openQueue returns the Redis-backed queue when REDIS_URL is set, otherwise
// an in-process queue whose jobs do not survive a restart.
func openQueue(ctx context.Context, cfg config.NotifyConfig) (notify.Queue, func()) {
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set; using in-process notification queue")
		return notify.NewMemoryQueue(1024), func() {}
	}
	q, err := notify.NewRedisQueue(ctx, cfg.RedisURL, cfg.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	log.Info().Str("queue", cfg.Queue).Msg("redis notification queue ready")
	return q, func() { _ = q.Close() }
}
