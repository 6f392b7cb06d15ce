package http

import (
	"github.com/gin-gonic/gin"
	"github.com/orderdesk/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.RateLimit.PerIP, cfg.RateLimit.Burst)))
	{
		v1.POST("/match", handler.Match)
		v1.POST("/workflows/:workflow/runs", handler.StartRun)

		runs := v1.Group("/runs/:runId")
		{
			runs.GET("", handler.GetRun)
			runs.POST("/match", handler.MatchInRun)
			runs.POST("/outcomes", handler.RecordOutcome)
			runs.POST("/finish", handler.FinishRun)
		}
	}

	return router
}
