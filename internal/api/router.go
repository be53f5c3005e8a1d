package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/internal/handlers"
	"github.com/pulsemetrics/pulseboard/internal/middleware"
	"github.com/pulsemetrics/pulseboard/internal/realtime"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(manager *engine.Manager, hub *realtime.Hub, db *gorm.DB) (*gin.Engine, error) {
	if manager == nil {
		return nil, fmt.Errorf("engine manager must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.GET("/health", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	notificationHandler := handlers.NewNotificationHandler(manager)
	preferenceHandler := handlers.NewPreferenceHandler(manager)
	ruleHandler := handlers.NewRuleHandler(manager)
	ingestHandler := handlers.NewIngestHandler(manager)
	streamHandler := handlers.NewStreamHandler(manager, hub)

	api := r.Group("/api")
	api.Use(middleware.RequireUser())

	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/stats", notificationHandler.Statistics)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.GET("/:id", notificationHandler.Get)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
		notifications.POST("", ingestHandler.Trigger)
	}

	preferences := api.Group("/preferences")
	{
		preferences.GET("", preferenceHandler.Get)
		preferences.PATCH("", preferenceHandler.Update)
	}

	rules := api.Group("/rules")
	{
		rules.GET("", ruleHandler.List)
		rules.POST("", ruleHandler.Create)
		rules.GET("/:id", ruleHandler.Get)
		rules.PUT("/:id", ruleHandler.Update)
		rules.POST("/:id/active", ruleHandler.SetActive)
		rules.DELETE("/:id", ruleHandler.Delete)
	}

	api.POST("/ingest", ingestHandler.Ingest)
	api.POST("/digests/flush", ingestHandler.FlushDigests)
	api.GET("/stream", streamHandler.Serve)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
