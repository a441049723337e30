package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/jobalerts/internal/api/handler"
	"github.com/timmy/jobalerts/internal/api/middleware"
	"github.com/timmy/jobalerts/internal/logger"
)

// RouterConfig holds HTTP settings of the router.
type RouterConfig struct {
	Mode       string
	AdminToken string
	CORS       middleware.CORSConfig
}

// Handlers groups the endpoint handlers mounted by SetupRouter.
type Handlers struct {
	Health        *handler.HealthHandler
	Jobs          *handler.JobHandler
	Subscriptions *handler.SubscriptionHandler
	Admin         *handler.AdminHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h Handlers, cfg RouterConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/health", h.Health.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/jobs", h.Jobs.ListJobs)
		v1.GET("/stats", h.Jobs.GetStats)
		v1.GET("/area-groups", h.Jobs.AreaGroups)

		// Subscriptions
		v1.POST("/subscriptions", h.Subscriptions.Create)
		v1.GET("/subscriptions", h.Subscriptions.List)
		v1.PUT("/subscriptions/:id", h.Subscriptions.Update)

		// Accounts, scoped to the owning ?email=
		v1.POST("/accounts/:id/deactivate", h.Subscriptions.DeactivateAccount)
		v1.POST("/accounts/:id/reactivate", h.Subscriptions.ReactivateAccount)
		v1.DELETE("/accounts/:id", h.Subscriptions.DeleteAccount)
		v1.GET("/accounts/:id/alerts", h.Subscriptions.History)

		// Admin
		if h.Admin != nil {
			admin := v1.Group("/admin", middleware.AdminAuth(cfg.AdminToken))
			admin.POST("/cycle", h.Admin.TriggerCycle)
			admin.GET("/cycle", h.Admin.GetCycleStatus)
			admin.POST("/jobs/reset", h.Admin.ResetJobs)
			admin.POST("/deliveries/:id/resend", h.Admin.ResendDelivery)
			admin.POST("/subscriptions/:id/deactivate", h.Admin.DeactivateSubscription)
			admin.GET("/snapshots/*key", h.Admin.GetSnapshot)
		}
	}

	return r
}
