package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	booking "github.com/jongalloway/travel-booking-agents"
	"github.com/jongalloway/travel-booking-agents/internal/api"
	"github.com/jongalloway/travel-booking-agents/service/metrics"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Addr string `help:"Listen address; overrides server.addr from the config."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	log, err := initLogger(cfg)
	if err != nil {
		return err
	}
	srv, err := booking.New(
		booking.WithConfig(cfg),
		booking.WithLogger(log),
		booking.WithMetrics(metrics.New(true)))
	if err != nil {
		return err
	}

	e := api.NewServer(srv, srv.Metrics().Handler(), log)
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err = e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}
