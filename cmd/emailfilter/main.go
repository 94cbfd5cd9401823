package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/znz-systems/emailfilter/internal/company"
	"github.com/znz-systems/emailfilter/internal/config"
	"github.com/znz-systems/emailfilter/internal/database"
	"github.com/znz-systems/emailfilter/internal/email"
	"github.com/znz-systems/emailfilter/internal/logging"
	"github.com/znz-systems/emailfilter/internal/metrics"
	"github.com/znz-systems/emailfilter/internal/ratelimit"
	"github.com/znz-systems/emailfilter/internal/store/postgres"
	"github.com/znz-systems/emailfilter/internal/web"
	"github.com/znz-systems/emailfilter/internal/web/handlers"
	"github.com/znz-systems/emailfilter/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Migrations
	if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Stores
	companyStore := postgres.NewCompanyStore(db)
	emailStore := postgres.NewEmailStore(db)

	// Services
	companyService := company.NewService(companyStore)
	emailService := email.NewService(emailStore, email.Options{
		PageSize:     cfg.PageSize,
		MaxBatchSize: cfg.MaxBatchSize,
		Location:     cfg.Location,
		Recorder:     m,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Rate limiter
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	// Router
	router := web.NewRouter(web.RouterDeps{
		CompanyHandler: handlers.NewCompanyHandler(companyService, cfg.MaxBodyBytes),
		EmailHandler:   handlers.NewEmailHandler(emailService, cfg.BaseURL, cfg.MaxBodyBytes),
		HealthHandler:  handlers.NewHealthHandler(db),
		Limiter:        limiter,
		Metrics:        m.Middleware,
		MetricsHandler: m.Handler(),
	})

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("emailfilter starting", "addr", addr, "page_size", cfg.PageSize, "timezone", cfg.Location.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
