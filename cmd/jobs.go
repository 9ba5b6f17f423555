package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-settlements/app/service"
	"github.com/vibast-solutions/ms-go-settlements/config"
)

var (
	workerMode bool
)

var payoutsCmd = &cobra.Command{
	Use:   "payouts",
	Short: "Run payout related commands",
}

var payoutsRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry seller payouts for captured settlements that failed to disburse",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"payouts_retry",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.PayoutRetryInterval },
			func(s *service.SettlementService, ctx context.Context) error {
				return s.RunPayoutRetryBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(payoutsCmd)
	payoutsCmd.AddCommand(payoutsRetryCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.SettlementService, ctx context.Context) error,
) {
	cfg, settlementService, cleanup := mustCreateSettlementService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), settlementService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(settlementService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	settlementService *service.SettlementService,
	fn func(s *service.SettlementService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(settlementService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(settlementService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
