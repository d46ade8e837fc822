package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/config"
	"github.com/courierhq/courier/pkg/gateway"
	"github.com/courierhq/courier/pkg/queue"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the public ingress gateway",
	Long: `Start the public mTLS ingress gateway.

The gateway is the only externally reachable process. Clients authenticate
with certificates, payloads are validated and rate limited, and accepted
messages are registered with the registry before being enqueued.

Examples:
  courier gateway --config /etc/courier/config.yaml`,
	RunE: runGateway,
}

func runGateway(cmd *cobra.Command, args []string) error {
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

	q, err := queue.New(ctx, &cfg.Queue)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer q.Close()

	if cfg.Gateway.AllowHeaderIdentity {
		logger.Warn("header identity bypass is ENABLED; clients may submit without certificates")
	}

	srv, err := gateway.NewServer(&cfg.Gateway, q)
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}

	logger.Info("starting courier gateway", "version", Version)

	return srv.Start(ctx)
}
