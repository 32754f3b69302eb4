package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mishasvintus/access_mirror/internal/handler"
)

// SetupRoutes configures all API routes.
func SetupRoutes(syncHandler *handler.SyncHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Sync triggers
	r.POST("/groups/:group/sync/membership", syncHandler.SyncMembership)
	r.POST("/groups/:group/sync/correlations", syncHandler.SyncCorrelations)

	// Mirrored data
	r.GET("/groups/:group/members", syncHandler.ListMembers)
	r.GET("/groups/:group/stats", syncHandler.GetStatistics)
	r.GET("/members/:id/correlations", syncHandler.ListCorrelations)

	// Operations
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
