// Package main contains the entrypoint for the tutor chat server.
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

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/yuehan/english-tutor/internal/api"
	"github.com/yuehan/english-tutor/internal/config"
	"github.com/yuehan/english-tutor/internal/gemini"
	"github.com/yuehan/english-tutor/internal/logger"
	"github.com/yuehan/english-tutor/internal/ratelimit"
	"github.com/yuehan/english-tutor/internal/scheduler"
	"github.com/yuehan/english-tutor/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components, serves until the context is cancelled, and
// returns the process exit code.
func run(ctx context.Context) int {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		log.Error("Failed to open cache database", "path", cfg.Storage.Path, "error", err)
		return 1
	}
	defer storage.Close(db)
	store := storage.NewStore(db, log, cfg.Storage.QuotaBytes, cfg.Storage.Debounce)

	model, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	limiter := ratelimit.New(ratelimit.NewMemoryStore(), cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)

	r := chi.NewRouter()
	r.Use(logger.Middleware(log))
	r.Use(api.CORS(cfg.Server.AllowedOrigins))
	api.NewHandler(log, cfg, model, limiter).Routes(r)

	sched, err := scheduler.New(log, cfg.Scheduler, map[string]scheduler.TaskFunc{
		scheduler.TaskMaintenance: scheduler.NewMaintenanceTask(log, store, cfg.Chat.MaxStored),
	})
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	if err := sched.Start(); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "addr", cfg.Server.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sched.Stop(); err != nil {
			log.Error("Scheduler shutdown failed", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Server stopped due to error", "error", err)
		return 1
	}

	log.Info("Server stopped gracefully")
	return 0
}
