// Package router provides docqa service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/rag/handler"
	"github.com/kart-io/docqa/pkg/infra/middleware"
)

// Register registers the docqa routes on engine. metrics may be nil.
func Register(engine *gin.Engine, service string, ragHandler *handler.RAGHandler, health *middleware.HealthManager, metrics http.Handler) {
	logger.Info("Registering docqa routes...")

	engine.GET("/healthz", health.Handler())
	engine.GET("/version", middleware.VersionHandler(service, false))
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := engine.Group("/v1")
	{
		docqa := v1.Group("/docqa")
		{
			// Documents
			docqa.POST("/documents", ragHandler.Upload)
			docqa.GET("/documents", ragHandler.ListDocuments)
			docqa.GET("/documents/:id", ragHandler.GetDocument)
			docqa.DELETE("/documents/:id", ragHandler.DeleteDocument)

			// Question answering
			docqa.POST("/query", ragHandler.Query)

			docqa.GET("/stats", ragHandler.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}
