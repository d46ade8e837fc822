package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/config"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/queue"
	registryapi "github.com/courierhq/courier/pkg/registry/api"
	"github.com/courierhq/courier/pkg/store"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the registry API server",
	Long: `Start the registry API server.

The registry owns the durable message store, the identity store and the
audit ledger. It serves the operator portal, the admin API, and the
internal surface used by the gateway and the delivery workers.

Examples:
  # Start with the default config location
  courier server

  # Start with a custom config file
  courier server --config /etc/courier/config.yaml

  # Override settings from the environment
  COURIER_LOGGING_LEVEL=DEBUG courier server`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	InitMetrics(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	cryptoSvc, err := crypto.NewService(cfg.Crypto)
	if err != nil {
		return fmt.Errorf("failed to initialize crypto service: %w", err)
	}

	// The registry only touches the queue for readiness reporting; start
	// without it if Redis is down.
	var q queue.Queue
	if rq, err := queue.New(ctx, &cfg.Queue); err != nil {
		logger.Warn("queue unreachable, readiness will report it", logger.Err(err))
	} else {
		q = rq
		defer rq.Close()
	}

	if cfg.Registry.TLS.CertFile == "" {
		logger.Warn("registry serving plain HTTP; the internal surface is unprotected without mutual TLS")
	}

	srv, err := registryapi.NewServer(cfg.Registry, st, q, cryptoSvc)
	if err != nil {
		return fmt.Errorf("failed to create registry server: %w", err)
	}

	logger.Info("starting courier registry",
		"version", Version,
		"database", string(cfg.Database.Type),
	)

	return srv.Start(ctx)
}
