package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/joltify-bridge/bridge_service/internal/api/handlers"
	"github.com/joltify-bridge/bridge_service/internal/api/middleware"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/config"
	"github.com/joltify-bridge/bridge_service/pkg/logger"
	"github.com/joltify-bridge/bridge_service/pkg/tracing"
)

// Dependencies bundles everything the router needs.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	Transfers *handlers.TransferHandlers
	Mint      *handlers.MintHandlers
	Core      *handlers.CoreHandlers
}

// SetupRoutes configures all application routes
func SetupRoutes(deps Dependencies) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(deps.Config.Server.RateLimitPerMin))

	// Health checks (no versioning)
	router.GET("/health", deps.Core.Health)
	router.GET("/ready", deps.Core.Ready)
	router.GET("/live", deps.Core.Live)
	router.GET("/version", deps.Core.Version)
	router.GET("/metrics", deps.Core.Metrics)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		transfers := v1.Group("/transfers")
		{
			transfers.POST("", deps.Transfers.Create)
			transfers.GET("", deps.Transfers.List)
			transfers.GET("/:id", deps.Transfers.Get)
			transfers.GET("/:id/history", deps.Transfers.History)
			transfers.DELETE("/:id", deps.Transfers.Cancel)
			transfers.POST("/:id/relay", deps.Transfers.Relay)
		}

		routes := v1.Group("/routes")
		{
			routes.GET("/:chain/quote", deps.Transfers.Quote)
		}

		v1.POST("/mint", deps.Mint.Mint)
	}

	return router
}
