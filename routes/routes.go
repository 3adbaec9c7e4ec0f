package routes

import (
	"net/http"

	"github.com/ccjoness/StellarIQ-API/controllers"
	"github.com/ccjoness/StellarIQ-API/middleware"
	"github.com/gin-gonic/gin"
)

// Deps carries the handlers and settings the routes need
type Deps struct {
	Monitoring *controllers.MonitoringController
	Auth       *controllers.AuthController
	Limiter    *middleware.LoginRateLimiter
	AlertFeed  http.HandlerFunc
	JWTSecret  string
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "StellarIQ Monitoring API",
			"version": "1.0.0",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	admin := router.Group("/api/v1/admin")
	{
		// Token exchange, rate limited per IP
		admin.POST("/auth/token", deps.Limiter.Middleware(), deps.Auth.IssueToken)

		protected := admin.Group("")
		protected.Use(middleware.JWTAuthMiddleware(deps.JWTSecret))
		{
			monitoring := protected.Group("/monitoring")
			{
				monitoring.POST("/sweep", deps.Monitoring.TriggerSweep)
				monitoring.GET("/jobs", deps.Monitoring.GetJobStatus)
				monitoring.POST("/force-check", deps.Monitoring.ForceCheck)
				monitoring.GET("/stats", deps.Monitoring.GetStats)
			}

			analysis := protected.Group("/analysis")
			{
				analysis.GET("/strategies", deps.Monitoring.ListStrategies)
				analysis.GET("/:symbol", deps.Monitoring.AnalyzeSymbol)
			}

			protected.DELETE("/market/cache/:symbol", deps.Monitoring.InvalidateCache)
			protected.GET("/notifications", deps.Monitoring.ListNotifications)

			// WebSocket stream of finalized notification records
			protected.GET("/ws/alerts", gin.WrapF(deps.AlertFeed))
		}
	}
}
