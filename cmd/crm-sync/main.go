package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voicelinehq/crm-sync/internal/config"
	"github.com/voicelinehq/crm-sync/internal/crm"
	"github.com/voicelinehq/crm-sync/internal/crm/hubspot"
	"github.com/voicelinehq/crm-sync/internal/platform/sqlite"
	entityrepo "github.com/voicelinehq/crm-sync/internal/repository/entity"
	jobrepo "github.com/voicelinehq/crm-sync/internal/repository/syncjob"
	"github.com/voicelinehq/crm-sync/internal/server"
	"github.com/voicelinehq/crm-sync/internal/syncer"
	"github.com/voicelinehq/crm-sync/internal/syncjob"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Root context: cancelled on SIGINT/SIGTERM so in-flight jobs stop at
	// their next checkpoint during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Open database
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Repositories
	jobRepo := jobrepo.NewRepository(db.DB)
	entityRepo := entityrepo.NewRepository(db.DB)

	// CRM transport registry
	registry := crm.NewRegistry()
	registry.Register(hubspot.New(
		hubspot.WithToken(cfg.HubSpot.Token),
		hubspotEndpoint(cfg.HubSpot.Endpoint),
	))

	// Services
	jobSvc := syncjob.NewService(jobRepo, registry)
	execSvc := syncer.NewService(jobRepo, entityRepo, registry)

	// Worker pool: picks up pending jobs in the background
	pool := syncjob.NewWorkerPool(jobRepo, execSvc, cfg.Workers, cfg.PollInterval)
	jobSvc.SetNotify(pool.Notify)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(rootCtx)
		close(poolDone)
	}()

	// Re-queue interrupted jobs so workers resume them from their last
	// checkpoint.
	if err := jobSvc.RecoverStaleJobs(rootCtx); err != nil {
		slog.Error("failed to recover stale jobs", "error", err)
	}
	pool.Notify()

	// HTTP server — rootCtx is used as BaseContext so every request context
	// inherits from it and is cancelled on shutdown.
	srv := server.New(rootCtx, cfg.Port, jobSvc, registry)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port)
	<-done

	// Cancel root context first so workers stop claiming jobs and in-flight
	// batches halt at the next item boundary.
	rootCancel()

	// Wait for the worker pool to drain before shutting down HTTP.
	<-poolDone

	// Then drain connections with a deadline.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

func hubspotEndpoint(ep string) hubspot.Option {
	if ep == "" {
		return func(*hubspot.Transport) {}
	}
	return hubspot.WithEndpoint(ep)
}
