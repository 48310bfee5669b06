package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EnowBibi/KontriVibeBackend/internal/handlers"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
)

// Options are the mounts outside the API group.
// UploadsDir is served at UploadsURL when media lives on local disk.
type Options struct {
	UploadsURL string
	UploadsDir string
}

// RegisterRoutes mounts every HTTP route on the engine.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	guards handlers.Guards,
	opts Options,
) {
	ginRouter.GET("/health", appHandlers.HealthHandler.Health)
	ginRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.UploadsDir != "" && opts.UploadsURL != "" {
		ginRouter.Static(opts.UploadsURL, opts.UploadsDir)
		logger.Info("Serving local uploads", "url", opts.UploadsURL, "dir", opts.UploadsDir)
	}

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api, guards)
		appHandlers.SubscriptionHandler.RegisterRoutes(api, guards)
		appHandlers.WebhookHandler.RegisterRoutes(api)
		appHandlers.NotificationHandler.RegisterRoutes(api, guards)
		appHandlers.SongHandler.RegisterRoutes(api, guards)
		appHandlers.PostHandler.RegisterRoutes(api, guards)
		appHandlers.InteractionHandler.RegisterRoutes(api, guards)
	}
}
