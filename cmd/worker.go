package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ro-savage/nz-tech-events/config"
	"github.com/ro-savage/nz-tech-events/internal/cache"
	"github.com/ro-savage/nz-tech-events/internal/mail"
	"github.com/ro-savage/nz-tech-events/internal/metrics"
	"github.com/ro-savage/nz-tech-events/internal/repositories"
	"github.com/ro-savage/nz-tech-events/internal/services"
)

var digestOnce bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that sends the weekly regional email digest`,
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().BoolVar(&digestOnce, "once", false, "run the digest immediately and exit")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return err
	}

	// Initialize cache, it also provides the digest run lock
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without run lock")
		redisCache = &cache.RedisCache{}
	}

	// Initialize mail hand-off
	mailer, err := mail.NewMailer(cfg.Mail)
	if err != nil {
		return err
	}
	defer mailer.Close()

	timezone, err := time.LoadLocation(cfg.Digest.Timezone)
	if err != nil {
		return errors.Wrapf(err, "invalid timezone %q", cfg.Digest.Timezone)
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize repositories and the digest service
	eventRepo := repositories.NewEventRepository(db, readOnlyDB)
	subscriptionRepo := repositories.NewSubscriptionRepository(db, readOnlyDB)

	digestService := services.NewDigestService(
		eventRepo,
		subscriptionRepo,
		mailer,
		redisCache,
		metricsCollector,
		timezone,
		cfg.Digest.NewEventsWindow,
		cfg.Digest.LockTTL,
	)

	if digestOnce {
		log.Info().Msg("Running digest once")
		return digestService.Run(ctx, time.Now())
	}

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Start the digest cron job
	g.Go(func() error {
		log.Info().
			Str("schedule", cfg.Digest.Schedule).
			Str("timezone", cfg.Digest.Timezone).
			Msg("Starting weekly digest scheduler")

		// Create a scheduler in the digest timezone
		scheduler, err := gocron.NewScheduler(gocron.WithLocation(timezone))
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.CronJob(cfg.Digest.Schedule, false),
			gocron.NewTask(func() {
				log.Info().Msg("Running weekly digest job")
				if err := digestService.Run(ctx, time.Now()); err != nil {
					log.Error().Err(err).Msg("Weekly digest job failed")
				}
			}),
		)
		if err != nil {
			return err
		}

		// Start the scheduler
		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		// Shutdown the scheduler
		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
