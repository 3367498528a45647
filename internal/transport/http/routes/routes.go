package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	"github.com/creativedesigns/retail-iam/internal/infra/config"
	"github.com/creativedesigns/retail-iam/internal/infra/security"
	"github.com/creativedesigns/retail-iam/internal/transport/http/handlers"
	"github.com/creativedesigns/retail-iam/internal/transport/http/middleware"
	"github.com/creativedesigns/retail-iam/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config            *config.AppConfig
	Logger            *zap.Logger
	Registry          *usecase.RegistryService
	Tokens            *security.TokenManager
	PasswordValidator *security.PasswordValidator
	RateLimiter       *middleware.RateLimiter
	Metrics           *middleware.HTTPMetrics
	Database          DatabaseChecker
	Cache             CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: deps.Config.CORS.AllowedOrigins,
			AllowedMethods: deps.Config.CORS.AllowedMethods,
			AllowedHeaders: deps.Config.CORS.AllowedHeaders,
			MaxAge:         deps.Config.CORS.MaxAge,
		}))
	}
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Tokens)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Registry, deps.Tokens, deps.Logger)
		authHandler.RegisterRoutes(authGroup, buildLoginMiddlewares(deps)...)

		accountGroup := api.Group("/accounts")
		accountGroup.Use(authMiddleware)
		accountGroup.Use(middleware.RequirePermission(deps.Registry, domain.PermissionManageAccounts))
		accountHandler := handlers.NewAccountHandler(deps.Registry, deps.Logger)
		accountHandler.RegisterRoutes(accountGroup)

		passwordHandler := handlers.NewPasswordHandler(deps.Registry, deps.PasswordValidator, deps.Logger)
		passwordGroup := api.Group("/password")
		passwordGroup.POST("/change", authMiddleware, passwordHandler.ChangePassword)
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
