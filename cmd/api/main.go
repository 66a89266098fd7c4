package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartsales_backend/internal/events"
	apphttp "smartsales_backend/internal/http"
	"smartsales_backend/internal/http/router"
	"smartsales_backend/internal/leads"
	"smartsales_backend/internal/leads/repository"
	"smartsales_backend/platform/config"
	"smartsales_backend/platform/db"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/retry"
	"smartsales_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var (
		history repository.HistoryLog
		conn    *db.DB
	)
	startup := retry.NewPolicy(5, 2*time.Second, 30*time.Second)
	if _, err := startup.Do(ctx, func(ctx context.Context, attempt int) error {
		h, c, err := repository.OpenHistory(ctx, cfg)
		if err != nil {
			log.Warn("retryable operation failed", "operation", "history store", "attempt", attempt, "error", err)
			return retry.Retryable(err)
		}
		history, conn = h, c
		return nil
	}); err != nil {
		log.Error("failed to open history store", "error", err)
		panic("failed to open history store: " + err.Error())
	}
	if conn != nil {
		defer conn.Close()
		log.Info("history database ready", "dialect", conn.Dialect)
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule, err := leads.NewModule(cfg, history, eventBus, val, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}
	defer leadsModule.Close()

	eventBus.Subscribe(events.FollowUpDue{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.FollowUpDue)
		if !ok {
			return nil
		}
		log.Info("follow-up ready for sales", "leadId", e.LeadID, "kind", e.Kind, "status", e.Status)
		return nil
	}))

	if err := leadsModule.Start(ctx); err != nil {
		log.Error("failed to start leads module", "error", err)
		panic("failed to start leads module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
		},
	}
	if conn != nil {
		app.Health = db.NewHealthAdapter(conn)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}
