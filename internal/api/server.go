package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ro-savage/nz-tech-events/config"
	"github.com/ro-savage/nz-tech-events/internal/api/handlers"
	"github.com/ro-savage/nz-tech-events/internal/api/middleware"
	"github.com/ro-savage/nz-tech-events/internal/cache"
	"github.com/ro-savage/nz-tech-events/internal/metrics"
	"github.com/ro-savage/nz-tech-events/internal/repositories"
	"github.com/ro-savage/nz-tech-events/internal/services"
	"github.com/ro-savage/nz-tech-events/internal/tracing"
)

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server

	eventService        *services.EventService
	subscriptionService *services.SubscriptionService
	userRepo            *repositories.UserRepository
	cache               *cache.RedisCache
	metrics             *metrics.Metrics
	tracer              tracing.Tracer
	timezone            *time.Location
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	eventService *services.EventService,
	subscriptionService *services.SubscriptionService,
	userRepo *repositories.UserRepository,
	redisCache *cache.RedisCache,
	m *metrics.Metrics,
	tracer tracing.Tracer,
	timezone *time.Location,
) *Server {
	server := &Server{
		config:              cfg,
		eventService:        eventService,
		subscriptionService: subscriptionService,
		userRepo:            userRepo,
		cache:               redisCache,
		metrics:             m,
		tracer:              tracer,
		timezone:            timezone,
	}

	router := server.setupRouter()
	server.router = router

	httpServer := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
	}
	server.httpServer = httpServer

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Recovery middleware
	router.Use(gin.Recovery())

	if s.tracer != nil {
		if app := s.tracer.Application(); app != nil {
			router.Use(middleware.NewRelicMiddleware(app))
		}
	}
	router.Use(middleware.Actor(s.userRepo))

	// Register handlers
	eventsHandler := handlers.NewEventsHandler(s.eventService, s.cache, s.timezone)
	eventsHandler.RegisterRoutes(router)

	subscriptionsHandler := handlers.NewSubscriptionsHandler(s.subscriptionService)
	subscriptionsHandler.RegisterRoutes(router)

	adminHandler := handlers.NewAdminHandler(s.eventService, s.subscriptionService)
	adminHandler.RegisterRoutes(router)

	metaHandler := handlers.NewMetaHandler(s.metrics)
	metaHandler.RegisterRoutes(router)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
