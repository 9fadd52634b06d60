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

	"timetable-service/internal/config"
	"timetable-service/internal/http-server/router"
	"timetable-service/internal/lock"
	svc "timetable-service/internal/service"
	"timetable-service/internal/storage/memory"
	"timetable-service/internal/storage/postgres"
	"timetable-service/pkg/handlers/slogpretty"
	"timetable-service/pkg/metrics"
	"timetable-service/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type closer interface {
	Close() error
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting timetable API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	store, err := setupStorage(cfg)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := setupLocker(cfg)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	m := metrics.New()

	service := svc.NewService(store, locker,
		svc.WithPeriodsPerDay(cfg.Timetable.PeriodsPerDay),
		svc.WithLockTTL(cfg.Timetable.LockTTL),
		svc.WithLockWait(cfg.Timetable.LockWait),
		svc.WithObserver(m),
	)

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router.New(log, cfg, service, m),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if c, ok := store.(closer); ok {
		if err := c.Close(); err != nil {
			log.Error("Failed to close storage", sl.Err(err))
		} else {
			log.Info("Storage closed")
		}
	}

	if c, ok := locker.(closer); ok {
		if err := c.Close(); err != nil {
			log.Error("Failed to close locker", sl.Err(err))
		} else {
			log.Info("Locker closed")
		}
	}

	log.Info("Shutdown finished, server stopped")

}

func setupStorage(cfg *config.Config) (svc.Store, error) {
	if cfg.StoragePath == config.StorageMemory {
		return memory.New(), nil
	}

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, err
	}

	return storage, nil
}

func setupLocker(cfg *config.Config) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		return lock.NopLock{}, nil
	}

	return lock.NewRedisLock(cfg.RedisAddr)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
