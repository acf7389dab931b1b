package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go-access-console/internal/admin"
	"go-access-console/internal/api"
	"go-access-console/internal/auth"
	"go-access-console/internal/command"
	"go-access-console/internal/config"
	"go-access-console/internal/console"
	"go-access-console/internal/event"
	"go-access-console/internal/session"
)

// App wires the console's pieces together.
type App struct {
	console *console.Console
	channel *command.Channel
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.Default()

	sess := session.New(session.NewFileStore(cfg.TokenFile), logger)
	bus := event.NewBus()

	client, err := api.New(cfg.APIBaseURL, api.Options{
		Timeout: cfg.RequestTimeout,
		Tokens:  sess,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build api client: %w", err)
	}

	authState := auth.New(sess, client, bus, logger)
	directory := admin.NewDirectory(client, authState, logger)
	channel := command.New(cfg.CommandWSURL, command.Options{Bus: bus, Logger: logger})

	ui := console.New(authState, directory, client, channel, bus, os.Stdin, os.Stdout, logger)

	return &App{console: ui, channel: channel}, nil
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.channel.Close()

	return a.console.Run(ctx)
}
