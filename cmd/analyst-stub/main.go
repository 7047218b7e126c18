// Package main runs a fake analysis backend for local development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/analyst-go/internal/config"
	"github.com/raphaelgruber/analyst-go/internal/stub"
)

func main() {
	cfg := config.Load()

	addr := flag.String("addr", cfg.StubAddr, "listen address")
	flag.Parse()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel, cfg.LogLevel)
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	httpServer := &http.Server{
		Addr:        *addr,
		Handler:     stub.New(logger).Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("stub backend listening", "url", "http://"+*addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down stub backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("stub backend stopped")
}
