package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/concoursapp/catalogsync/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
		errorHandlingMiddleware(handler.logger),
	)

	api := router.Group("/api/v1")
	{
		api.GET("/categories", handler.ListCategories)
		api.GET("/categories/:id/questions", handler.ListQuestions)
		api.GET("/sync/status", handler.SyncStatus)
		api.POST("/sync/refresh", handler.TriggerRefresh)
		api.GET("/sync/events", handler.StreamUpdates)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
