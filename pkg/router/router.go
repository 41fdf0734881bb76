package router

import (
	"ai-assistant-hub/backend/pkg/di"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"
	"ai-assistant-hub/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Router is the main HTTP router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
}

// New builds the engine with the full middleware chain and all routes
// mounted.
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	limiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: middleware.DefaultRateLimiterOptions().ExpiryDuration,
		KeyFunc:        middleware.DefaultRateLimiterOptions().KeyFunc,
	})
	engine.Use(limiter.Middleware())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.JWTAuthMiddleware(container.JWTService, container.Logger)

	v1 := engine.Group("/api/v1")
	container.HealthHandler.RegisterRoutes(v1)
	container.AuthHandler.RegisterRoutes(v1, auth)
	container.AssistantHandler.RegisterRoutes(v1, auth)
	container.DocumentHandler.RegisterRoutes(v1, auth)
	container.SessionHandler.RegisterRoutes(v1, auth)
	container.TurnHandler.RegisterRoutes(v1, auth)
	container.WSHandler.RegisterRoutes(v1, auth)

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
	}
}
