package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autoqa/backend/internal/api/handlers"
	"autoqa/backend/internal/api/middleware"
)

func SetupRoutes(h *handlers.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.HealthCheck)
		v1.GET("/devices", h.GetDevices)
		v1.GET("/ws/recording", h.RecordingWebSocket)

		recording := v1.Group("/recording")
		{
			recording.POST("/start", h.StartRecording)
			recording.POST("/stop", h.StopRecording)
			recording.GET("/status", h.GetRecordingStatus)
			recording.POST("/save", h.SaveRecording)
		}

		recordings := v1.Group("/recordings")
		{
			recordings.GET("", h.GetRecordings)
			recordings.GET("/:id", h.GetRecording)
			recordings.DELETE("/:id", h.DeleteRecording)
			recordings.POST("/:id/export", h.ExportRecording)
			recordings.POST("/:id/replay", h.ReplayRecording)
			recordings.GET("/:id/replays", h.GetReplays)
		}

		v1.POST("/replays/:id/cancel", h.CancelReplay)
		v1.POST("/selectors/repair", h.RepairSelector)
		v1.POST("/scripts/repair", h.RepairScripts)
	}

	return router
}
