package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careerguide/internal/backend"
	"careerguide/internal/config"
	"careerguide/internal/logger"
	"careerguide/internal/orchestrator/paymentwatch"
	"careerguide/internal/orchestrator/usagesweep"
	"careerguide/internal/payment"
	"careerguide/internal/pgmq"
	"careerguide/internal/pubsub"
	"careerguide/internal/repository"
	"careerguide/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Background workers for the entitlement gateway",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			l := logger.New()
			l.Warn().Msg("Warning: no .env file found")
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		log = logger.New(cfg.LogLevel)
		return nil
	},
	SilenceUsage: true,
}

var paymentWatchCmd = &cobra.Command{
	Use:   "payment-watch",
	Short: "Follow pending payment orders and signal successful payments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPaymentWatch(cmd.Context())
	},
}

var usageSweepCmd = &cobra.Command{
	Use:   "usage-sweep",
	Short: "Remove local usage counters older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUsageSweep(cmd.Context())
	},
}

var sweepOnce bool

func init() {
	usageSweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "Sweep a single time and exit")
	rootCmd.AddCommand(paymentWatchCmd, usageSweepCmd)
}

func runPaymentWatch(ctx context.Context) error {
	if err := cfg.RequireBackend(); err != nil {
		return err
	}
	if cfg.GCPProjectID == "" {
		return fmt.Errorf("payment-watch publishes to Pub/Sub and needs GCP_PROJECT_ID")
	}

	db, err := repository.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	queue := pgmq.New(db)
	if err := queue.CreateQueue(ctx, cfg.PaymentWatchQueueName); err != nil {
		return err
	}

	var secrets service.SecretManagerService
	if cfg.BackendServiceTokenSM != "" {
		secrets, err = service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			return err
		}
		defer secrets.Close()
	}
	token, err := service.ResolveServiceToken(ctx, cfg, secrets)
	if err != nil {
		return err
	}

	publisher, err := pubsub.NewPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	client := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout(), log)
	poller := payment.NewPoller(client, log,
		payment.WithMaxAttempts(cfg.PaymentPollMaxAttempts),
		payment.WithInterval(cfg.PaymentPollInterval()),
	)
	visibility := cfg.PaymentPollMaxAttempts*cfg.PaymentPollIntervalSec + 30

	return paymentwatch.Run(ctx, log, queue, poller, publisher, paymentwatch.Options{
		QueueName:      cfg.PaymentWatchQueueName,
		Token:          token,
		VisibilitySec:  visibility,
		PollTimeoutSec: cfg.PaymentWatchPollSec,
	})
}

func runUsageSweep(ctx context.Context) error {
	if err := cfg.RequireUsage(); err != nil {
		return err
	}
	switch cfg.UsageStore {
	case "postgres":
	case "redis":
		log.Info().Msg("Redis usage counters expire on their own, nothing to sweep")
		return nil
	case "", "memory":
		log.Info().Msg("In-memory usage counters are swept by the gateway process")
		return nil
	default:
		return fmt.Errorf("usage-sweep needs USAGE_STORE=postgres, got %q", cfg.UsageStore)
	}

	db, err := repository.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewUsageCounterRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if sweepOnce {
		_, err := usagesweep.SweepOnce(ctx, log, repo, time.Now(), cfg.UsageRetentionMonths)
		return err
	}
	return usagesweep.Run(ctx, log, repo, cfg.UsageSweepInterval(), cfg.UsageRetentionMonths)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
