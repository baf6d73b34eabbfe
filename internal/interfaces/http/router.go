// Package http serves the development receipt validation endpoint.
package http

import (
	"github.com/gin-gonic/gin"

	"iapgate/internal/application/receipt"
	"iapgate/internal/infrastructure/auth"
	"iapgate/internal/infrastructure/metrics"
	"iapgate/internal/infrastructure/ratelimit"
	"iapgate/internal/interfaces/http/handlers"
	"iapgate/internal/interfaces/http/middleware"
	"iapgate/internal/shared/logger"
)

// Dependencies are the collaborators the router wires into handlers. Tokens
// and Limiter are optional.
type Dependencies struct {
	Validator receipt.Validator
	Ledger    handlers.Pinger
	Metrics   *metrics.Metrics
	Tokens    *auth.ServiceTokenService
	Limiter   ratelimit.RateLimiter
	Limits    ratelimit.Limits
	Logger    logger.Interface
}

// Router represents the HTTP router configuration
type Router struct {
	engine            *gin.Engine
	deps              Dependencies
	validationHandler *handlers.ValidationHandler
	healthHandler     *handlers.HealthHandler
	tokenMiddleware   *middleware.ServiceTokenMiddleware
}

func NewRouter(deps Dependencies) *Router {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	log := deps.Logger.Named("http")

	r := &Router{
		engine:            gin.New(),
		deps:              deps,
		validationHandler: handlers.NewValidationHandler(deps.Validator, log),
		healthHandler:     handlers.NewHealthHandler(deps.Ledger),
	}
	if deps.Tokens != nil {
		r.tokenMiddleware = middleware.NewServiceTokenMiddleware(deps.Tokens, log)
	}

	r.SetupRoutes()
	return r
}

// SetupRoutes configures all routes
func (r *Router) SetupRoutes() {
	log := r.deps.Logger.Named("http")

	r.engine.Use(middleware.Logger(log))
	r.engine.Use(middleware.Recovery(log))
	r.engine.Use(middleware.Metrics(r.deps.Metrics))

	r.engine.GET("/healthz", r.healthHandler.Health)
	r.engine.GET("/metrics", gin.WrapH(r.deps.Metrics.Handler()))

	validate := []gin.HandlerFunc{}
	if r.deps.Limiter != nil {
		validate = append(validate, middleware.RateLimit(r.deps.Limiter, r.deps.Limits, log))
	}
	if r.tokenMiddleware != nil {
		validate = append(validate, r.tokenMiddleware.RequireServiceToken())
	}
	validate = append(validate, r.validationHandler.Validate)

	r.engine.POST("/validate", validate...)
}

// GetEngine returns the gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
