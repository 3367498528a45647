package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/core/port"
	"github.com/creativedesigns/retail-iam/internal/infra/config"
	"github.com/creativedesigns/retail-iam/internal/infra/database"
	kafkainfra "github.com/creativedesigns/retail-iam/internal/infra/kafka"
	"github.com/creativedesigns/retail-iam/internal/infra/logger"
	redisinfra "github.com/creativedesigns/retail-iam/internal/infra/redis"
	"github.com/creativedesigns/retail-iam/internal/infra/security"
	memoryrepo "github.com/creativedesigns/retail-iam/internal/repository/memory"
	postgresrepo "github.com/creativedesigns/retail-iam/internal/repository/postgres"
	redisrepo "github.com/creativedesigns/retail-iam/internal/repository/redis"
	"github.com/creativedesigns/retail-iam/internal/transport/http/middleware"
	"github.com/creativedesigns/retail-iam/internal/transport/http/routes"
	"github.com/creativedesigns/retail-iam/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// New builds the full dependency graph from configuration: repository
// backend, secret scheme, registry, event publisher, and HTTP surface. The
// bootstrap administrator is seeded before the server accepts traffic.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &Application{cfg: cfg, logger: log}

	var accounts port.AccountRepository
	switch cfg.Storage.Driver {
	case "", "memory":
		accounts = memoryrepo.NewAccountRepository()
		log.Info("using in-memory account storage")
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		app.pool = pool
		accounts = postgresrepo.NewAccountRepository(pool)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	hasher := security.NewHasher(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})

	tokenSecret := cfg.Auth.TokenSecret
	if tokenSecret == "" && cfg.App.Env != "production" {
		tokenSecret = "development-only-secret"
		log.Warn("auth.token_secret not set, using development fallback")
	}
	tokens, err := security.NewTokenManager(tokenSecret, cfg.Auth.TokenTTL, cfg.App.Name)
	if err != nil {
		app.closePartial()
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	var eventPublisher port.EventPublisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			app.producer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka disabled, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	registry := usecase.NewRegistryService(accounts, hasher, hasher, eventPublisher, log)
	if err := registry.Seed(ctx, usecase.BootstrapAccount{
		FullName: cfg.Auth.BootstrapName,
		Username: cfg.Auth.BootstrapUsername,
		Secret:   cfg.Auth.BootstrapPassword,
	}); err != nil {
		app.closePartial()
		return nil, fmt.Errorf("seed registry: %w", err)
	}

	var rateLimiter *middleware.RateLimiter
	var cache routes.CacheChecker
	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			app.closePartial()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		app.redis = redisClient
		cache = redisClient

		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: "iam:rate-limit",
			TTL:       window * 2,
		})
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	}

	passwordValidator := security.NewPasswordValidator(
		security.RequirePasswordStrengthRule(cfg.Password.MinStrengthScore),
	)

	metrics, err := middleware.NewHTTPMetrics(middleware.MetricsOptions{})
	if err != nil {
		app.closePartial()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	var db routes.DatabaseChecker
	if app.pool != nil {
		db = app.pool
	}

	app.engine = routes.Register(routes.Dependencies{
		Config:            cfg,
		Logger:            log,
		Registry:          registry,
		Tokens:            tokens,
		PasswordValidator: passwordValidator,
		RateLimiter:       rateLimiter,
		Metrics:           metrics,
		Database:          db,
		Cache:             cache,
	})

	return app, nil
}

func (a *Application) closePartial() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.closePartial()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting retail IAM API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
