package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/driven"
	"github.com/BetterCallFirewall/CertiAudit/internal/limits"
	"github.com/BetterCallFirewall/CertiAudit/internal/selector"
	"github.com/BetterCallFirewall/CertiAudit/internal/server"
	"github.com/BetterCallFirewall/CertiAudit/internal/storage"
	"github.com/BetterCallFirewall/CertiAudit/internal/websocket"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the audit HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, limiter, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg = cfg.WithListenAddr(addr)
			}
			return serve(cmd.Context(), cfg, limiter)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $SERVER_ADDR or :8090)")
	return cmd
}

// newPipelineFactory builds the backend once; every request gets its own
// pipeline around it.
func newPipelineFactory(cfg *config.Config, limiter *limits.Limiter) (server.PipelineFactory, error) {
	sel := selector.New(cfg, limiter)
	backend, err := sel.GenerativeBackend()
	if err != nil {
		return nil, err
	}
	practices := driven.WithBestPracticesPath(cfg.Project.BestPracticesPath)

	return func(pt config.ProjectType, events driven.Broadcaster) (server.Auditor, error) {
		pipeline, err := sel.PipelineFor(backend, pt, practices, driven.WithBroadcaster(events))
		if err != nil {
			return nil, err
		}
		return pipeline, nil
	}, nil
}

func serve(parent context.Context, cfg *config.Config, limiter *limits.Limiter) error {
	factory, err := newPipelineFactory(cfg, limiter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	srv := server.NewServer(cfg, storage.NewMemoryStorageWithLimit(cfg.Server.MaxAudits), hub, factory)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
