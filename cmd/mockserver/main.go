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

	"go-access-console/internal/config"
	"go-access-console/internal/logger"
	"go-access-console/internal/mockserver"
)

func main() {
	slog.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))

	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	server, err := mockserver.New(cfg, slog.Default())
	if err != nil {
		slog.Error("failed to initialize mock backend", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("mock backend starting", "addr", httpServer.Addr)
		slog.Info("seeded account", "username", "admin", "password", "admin123")
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
