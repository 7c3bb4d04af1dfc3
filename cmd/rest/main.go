package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wealthadvisor-ai/internal/bootstrap"
	"wealthadvisor-ai/internal/config"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/internal/server"
	"wealthadvisor-ai/internal/tracer"
)

func main() {
	// 1. Configuration and logging
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(sysLogger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			sysLogger.Warn("MAIN", "Tracer shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 3. Dependencies
	container, err := bootstrap.NewContainer(cfg, sysLogger)
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background services
	if err := container.Start(ctx); err != nil {
		log.Fatalf("Background services failed to start: %v", err)
	}

	// 5. HTTP server
	srv := server.New(cfg, container)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			sysLogger.Error("MAIN", "Server stopped", map[string]interface{}{"error": err.Error()})
		}
	case <-ctx.Done():
		sysLogger.Info("MAIN", "Shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sysLogger.Error("MAIN", "Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
