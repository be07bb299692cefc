package timers

import (
	"github.com/JorgeSaicoski/microservice-commons/middleware"
	"github.com/gin-gonic/gin"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timers"
)

// RegisterRoutes registers all timer related routes
func RegisterRoutes(router *gin.RouterGroup, timerService *timers.Service, authMiddleware gin.HandlerFunc) {
	handler := NewTimerHandler(timerService)

	timersGroup := router.Group("/timers")
	timersGroup.Use(
		middleware.DefaultLoggingMiddleware(),
		authMiddleware,
	)
	{
		timersGroup.POST("/start", handler.StartTimer)      // Start a timer on a task
		timersGroup.POST("/stop", handler.StopTimer)        // Stop and record a time log
		timersGroup.GET("/active", handler.GetActiveTimer)  // Running timer with elapsed time
		timersGroup.DELETE("/active", handler.DiscardTimer) // Drop the running timer unrecorded
	}
}
