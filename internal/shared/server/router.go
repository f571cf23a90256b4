package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	googleauth "esign-backend/internal/auth"
	"esign-backend/internal/services/health"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/signing"
	"esign-backend/internal/uploads"
	"esign-backend/internal/users"
)

// RouterDeps holds the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config         config.Config
	SigningHandler *signing.Handler
	SignerHandler  *signing.SignerHandler
	UploadsHandler *uploads.Handler
	UserHandler    *users.Handler
	GoogleAuth     *googleauth.GoogleService
	Health         *health.Service
	RateLimits     map[string]middleware.RateLimitRule
}

// DefaultRateLimits keeps the public signer routes on a tighter budget than owner routes.
func DefaultRateLimits() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		middleware.DefaultRateLimitGroup: {Rate: 10, Burst: 40},
		middleware.SignerRateLimitGroup:  {Rate: 1, Burst: 10},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env != "dev" && deps.Config.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	rules := deps.RateLimits
	if rules == nil {
		rules = DefaultRateLimits()
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rules,
			GroupFor: middleware.GroupByRoute,
		}),
	)

	healthSvc := deps.Health
	api.GET("/health", func(c *gin.Context) {
		status := healthSvc.Check(c.Request.Context())
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.SigningHandler != nil {
		deps.SigningHandler.RegisterRoutes(api)
	}
	if deps.SignerHandler != nil {
		deps.SignerHandler.RegisterRoutes(api)
	}
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
