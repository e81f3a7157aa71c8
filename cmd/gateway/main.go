package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/schoolgate/internal/config"
	"github.com/dropDatabas3/schoolgate/internal/http/server"
	"github.com/dropDatabas3/schoolgate/internal/observability/logger"
	"github.com/dropDatabas3/schoolgate/internal/observability/tracing"
)

func main() {
	// .env opcional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfgPath := os.Getenv("GATEWAY_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/gateway.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	})
	defer logger.Sync()
	lg := logger.L().With(logger.Component("main"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{Enabled: cfg.Tracing.Enabled, Exporter: cfg.Tracing.Exporter})
	if err != nil {
		lg.Fatal("tracing setup failed", logger.Err(err))
	}

	handler, cleanup, err := server.Build(cfg, server.Options{})
	if err != nil {
		lg.Fatal("wiring failed", logger.Err(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("gateway listening", logger.String("addr", cfg.Server.Addr), logger.String("config", cfgPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			lg.Error("server failed", logger.Err(err))
		}
	case <-ctx.Done():
		lg.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		lg.Warn("graceful shutdown failed", logger.Err(err))
	}
	if err := cleanup(); err != nil {
		lg.Warn("cleanup error", logger.Err(err))
	}
	if err := shutdownTracing(sctx); err != nil {
		lg.Warn("tracing shutdown error", logger.Err(err))
	}
}
