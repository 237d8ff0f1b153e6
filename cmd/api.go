package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ro-savage/nz-tech-events/config"
	"github.com/ro-savage/nz-tech-events/internal/api"
	"github.com/ro-savage/nz-tech-events/internal/cache"
	"github.com/ro-savage/nz-tech-events/internal/mail"
	"github.com/ro-savage/nz-tech-events/internal/metrics"
	"github.com/ro-savage/nz-tech-events/internal/models"
	"github.com/ro-savage/nz-tech-events/internal/repositories"
	"github.com/ro-savage/nz-tech-events/internal/services"
	"github.com/ro-savage/nz-tech-events/internal/tracing"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for event submission, moderation and catalog listings`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = &cache.RedisCache{}
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = &tracing.NewRelicTracer{}
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

	// Initialize repositories and services
	eventRepo := repositories.NewEventRepository(db, readOnlyDB)
	subscriptionRepo := repositories.NewSubscriptionRepository(db, readOnlyDB)
	userRepo := repositories.NewUserRepository(db, readOnlyDB)

	eventService := services.NewEventService(eventRepo, mailer, metricsCollector, timezone)
	subscriptionService := services.NewSubscriptionService(subscriptionRepo)

	// Initialize and start the server
	server := api.NewServer(cfg, eventService, subscriptionService, userRepo,
		redisCache, metricsCollector, tracer, timezone)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func initDatabases(cfg config.Config) (*gorm.DB, *gorm.DB, error) {
	// Initialize write database
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}

	// Initialize read-only database
	readOnlyDB, err := gorm.Open(postgres.Open(cfg.DB.ReadOnlyDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	// Auto-migrate only the write database
	if err := models.SetupModels(db); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run migrations")
	}

	// Configure connection pools for both databases
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get underlying write DB connection")
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	readSqlDB, err := readOnlyDB.DB()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get underlying read-only DB connection")
	}
	// Higher limits for the read side, it serves all catalog listings
	readSqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns * 2)
	readSqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns * 2)
	readSqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return db, readOnlyDB, nil
}
