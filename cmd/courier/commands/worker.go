package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/config"
	"github.com/courierhq/courier/pkg/queue"
	"github.com/courierhq/courier/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the delivery worker pool",
	Long: `Start the delivery worker pool.

Workers drain the Redis queue, confirm deliveries with the registry, and
push failed messages back for linear retry until the attempt ceiling.

Examples:
  courier worker --config /etc/courier/config.yaml`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	client, err := worker.NewRegistryClient(cfg.Worker.RegistryURL, &cfg.Worker.RegistryTLS, cfg.Worker.RegistryTimeout)
	if err != nil {
		return fmt.Errorf("failed to create registry client: %w", err)
	}

	pool, err := worker.NewPool(&cfg.Worker, q, client)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	logger.Info("starting courier workers", "version", Version)

	return pool.Run(ctx)
}
