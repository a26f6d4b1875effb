package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers all API routes with the Gin engine.
func SetupRoutes(r *gin.Engine, deps Deps) {
	// Global middleware
	r.Use(LoggingMiddlewareGin(deps.Logger))

	domainViews := NewDomainViews(deps.Tracker, deps.Recorder, deps.Clock, deps.Logger)
	activityViews := NewActivityViews(deps.Tracker, deps.Recorder, deps.Clock, deps.Logger)
	storeViews := NewStoreViews(deps.Tracker, deps.Clock, deps.Logger)
	backupViews := NewBackupViews(deps.Backups, deps.Logger)

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/status", activityViews.Status)
		api.POST("/apply", activityViews.Apply)
		api.POST("/signals", activityViews.Signal)

		api.GET("/domains", domainViews.List)
		api.GET("/domains/:domain", domainViews.Get)

		api.GET("/store", storeViews.Get)
		api.PUT("/store", storeViews.Replace)
		api.DELETE("/store", storeViews.Clear)
		api.POST("/import", storeViews.Import)
		api.GET("/export", storeViews.Export)

		api.GET("/backups", backupViews.List)
		api.POST("/backups", backupViews.Create)
		api.POST("/backups/:id/restore", backupViews.Restore)
	}
}

// respondError writes the standard error body.
func respondError(ctx *gin.Context, status int, code, message string) {
	ctx.JSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}
