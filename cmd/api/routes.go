package main

import (
	"edu-video-studio/internal/httpapi"
	"edu-video-studio/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", httpapi.Health)
	r.POST("/v1/auth/token", h.IssueToken)

	v1 := r.Group("/v1")
	v1.Use(authMW)

	// Reads are open to every known role; anything spending provider quota
	// or mutating state needs creator or admin.
	read := rbac.RequireAnyRole(rbac.RoleViewer, rbac.RoleCreator)
	write := rbac.RequireWriter()

	contentGroup := v1.Group("/content")
	{
		contentGroup.POST("/generate", write, h.Generate)
		contentGroup.POST("/enhance", write, h.Enhance)
		contentGroup.POST("/summarize", write, h.Summarize)
		contentGroup.GET("/usage", read, h.ContentUsage)
	}

	v1.GET("/avatars", read, h.ListAvatars)
	v1.GET("/voices", read, h.ListVoices)

	videos := v1.Group("/videos")
	{
		videos.POST("", write, h.SubmitVideo)
		videos.GET("/:id", read, h.GetVideo)
		videos.POST("/:id/await", write, h.AwaitVideo)
	}

	scriptsGroup := v1.Group("/scripts")
	{
		scriptsGroup.GET("", read, h.ListScripts)
		scriptsGroup.POST("", write, h.SaveScript)
		scriptsGroup.GET("/:id", read, h.GetScript)
		scriptsGroup.DELETE("/:id", write, h.DeleteScript)
	}

	v1.GET("/reports/usage", read, h.UsageReport)
}
