package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/promptcraft/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, allowedOrigins []string) *gin.Engine {
	r := gin.New()

	r.Use(RecoveryMiddleware(deps.Logger))
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(allowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Storage.Ping(ctx); err != nil {
			deps.Logger.Error("Health check failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": "promptcraft-api"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "promptcraft-api"})
	})

	jobHandler := handler.NewJobHandler(deps)
	workflowHandler := handler.NewWorkflowHandler(deps)
	sceneHandler := handler.NewSceneHandler(deps)
	providerHandler := handler.NewProviderHandler(deps)
	settingsHandler := handler.NewSettingsHandler(deps)
	systemHandler := handler.NewSystemHandler(deps)

	v1 := r.Group("/api/v1", RequireJSON())
	{
		workflows := v1.Group("/workflows")
		{
			workflows.POST("", workflowHandler.CreateWorkflow)
			workflows.GET("", workflowHandler.ListWorkflows)
			workflows.GET("/:workflow_id", workflowHandler.GetWorkflow)
			workflows.PATCH("/:workflow_id", workflowHandler.UpdateWorkflow)
			workflows.DELETE("/:workflow_id", workflowHandler.DeleteWorkflow)
			workflows.POST("/:workflow_id/versions", workflowHandler.CreateVersion)
			workflows.GET("/:workflow_id/versions", workflowHandler.ListVersions)
		}

		scenes := v1.Group("/scenes")
		{
			scenes.POST("", sceneHandler.CreateScene)
			scenes.GET("", sceneHandler.ListScenes)
			scenes.GET("/:scene_id", sceneHandler.GetScene)
			scenes.PATCH("/:scene_id", sceneHandler.UpdateScene)
			scenes.DELETE("/:scene_id", sceneHandler.DeleteScene)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.PATCH("/:job_id", jobHandler.UpdateJob)
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)
		}

		v1.POST("/generations", jobHandler.SubmitGeneration)

		providers := v1.Group("/providers")
		{
			providers.GET("", providerHandler.ListProviders)
			providers.POST("/configure", providerHandler.ConfigureProvider)
			providers.POST("/local", providerHandler.ConfigureLocalProvider)
		}

		v1.POST("/ai/complete", providerHandler.Complete)

		settings := v1.Group("/settings")
		{
			settings.GET("", settingsHandler.ListSettings)
			settings.GET("/:key", settingsHandler.GetSetting)
			settings.PUT("/:key", settingsHandler.SetSetting)
		}

		system := v1.Group("/system")
		{
			system.GET("/port", systemHandler.CheckPort)
			system.POST("/open", systemHandler.OpenPath)
			system.GET("/asset", systemHandler.ServeAsset)
		}
	}

	return r
}
