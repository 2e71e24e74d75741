package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"filefolio-backend/internal/documents"
	"filefolio-backend/internal/services/health"
	"filefolio-backend/internal/shared/config"
	"filefolio-backend/internal/shared/metrics"
	"filefolio-backend/internal/shared/server/middleware"
	"filefolio-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config    config.Config
	Documents *documents.Handler
	Health    *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"UPLOAD":  {Rate: 1, Burst: 10},
				"DEFAULT": {Rate: 20, Burst: 60},
			},
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/documents" {
					return "UPLOAD"
				}
				return "DEFAULT"
			},
		}),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status(c.Request.Context()))
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	deps.Documents.RegisterRoutes(api)
	deps.Documents.RegisterThumbnailRoutes(&r.RouterGroup)

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
