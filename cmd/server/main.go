package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/auth"
	"github.com/openclaw/chat-server-go/internal/cache"
	"github.com/openclaw/chat-server-go/internal/config"
	"github.com/openclaw/chat-server-go/internal/database"
	"github.com/openclaw/chat-server-go/internal/handler"
	"github.com/openclaw/chat-server-go/internal/jobs"
	"github.com/openclaw/chat-server-go/internal/llm"
	"github.com/openclaw/chat-server-go/internal/metrics"
	"github.com/openclaw/chat-server-go/internal/middleware"
	"github.com/openclaw/chat-server-go/internal/redis"
	"github.com/openclaw/chat-server-go/internal/repository"
	"github.com/openclaw/chat-server-go/internal/service"
	"github.com/openclaw/chat-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	generator, err := llm.NewClient(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create response generator")
	}
	defer generator.Close()

	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	interactionRepo := repository.NewInteractionRepository(db.DB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db.DB)

	snapshots := cache.New(redisClient, cfg.SessionTTL(), cfg.InteractionTTL())
	rateLimiter := cache.NewRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitPeriod())

	broker := sse.NewBroker(redisClient)
	defer broker.Close()
	metrics.RegisterSSEClients(prometheus.DefaultRegisterer, broker.TotalClients)

	tokens := auth.NewTokenService(cfg.JWTSecretKey, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())

	authService := service.NewAuthService(userRepo, refreshTokenRepo, tokens)
	chatService := service.NewChatService(
		sessionRepo, interactionRepo, snapshots, generator, broker, cfg.MaxMessageLength,
	)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(rateLimiter)
	loginLimiter := middleware.NewLoginRateLimiter(middleware.DefaultLoginAttempts, middleware.DefaultLoginWindow)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())
	timeout := chimiddleware.Timeout(config.ServerRequestTimeout)

	authHandler := handler.NewAuthHandler(authService, loginLimiter.Handler)
	sessionHandler := handler.NewSessionHandler(chatService)
	chatHandler := handler.NewChatHandler(chatService, rateLimiter, rateLimitMiddleware.Handler)
	eventsHandler := handler.NewEventsHandler(broker)
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"database": db.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Method(http.MethodGet, "/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Mount("/auth", authHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)

			// Streams stay open past the request timeout.
			r.Get("/chat/events", eventsHandler.ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Mount("/session", sessionHandler.Routes())
				r.Mount("/chat", chatHandler.Routes())
			})
		})
	})

	cleanupJob := jobs.NewCleanupJob(refreshTokenRepo, config.TokenCleanupInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("environment", cfg.Environment).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
