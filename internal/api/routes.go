package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pyiy/zimage/internal/auth"
	"github.com/pyiy/zimage/internal/config"
)

// SetupRoutes registers the /api group on the router.
func SetupRoutes(router *gin.Engine, handler *Handler, cfg *config.Config) {
	group := router.Group("/api")
	group.Use(auth.Middleware(cfg.API.Password))
	{
		group.POST("/generate", handler.Generate)
		group.POST("/optimize", handler.Optimize)

		group.GET("/history", handler.ListHistory)
		group.DELETE("/history/:id", handler.DeleteHistory)
		group.GET("/prompts", handler.ListPrompts)

		group.POST("/images/:id/upscale", handler.Upscale)
		group.POST("/images/:id/blur", handler.ToggleBlur)
		group.GET("/images/:id/download", handler.Download)

		group.GET("/credentials", handler.CredentialStats)
		group.PUT("/credentials", handler.SetCredentials)
	}
}
