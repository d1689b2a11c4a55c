package api

import (
	"github.com/gin-gonic/gin"

	"clipbot/config"
)

func SetupRouter(status Status, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(status, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.GET("/stats", h.handleStats)
		v1.GET("/tasks", h.handleListTasks)
	}
	return r
}
