package timelogs

import (
	"github.com/JorgeSaicoski/microservice-commons/middleware"
	"github.com/gin-gonic/gin"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timelogs"
)

// RegisterRoutes registers all time log related routes
func RegisterRoutes(router *gin.RouterGroup, timeLogService *timelogs.Service, authMiddleware gin.HandlerFunc) {
	handler := NewTimeLogHandler(timeLogService)

	timeLogsGroup := router.Group("/timelogs")
	timeLogsGroup.Use(
		middleware.DefaultLoggingMiddleware(),
		authMiddleware,
	)
	{
		timeLogsGroup.POST("", handler.CreateTimeLog)       // Log a span of work
		timeLogsGroup.GET("", handler.GetMyTimeLogs)        // My logs, ?from=&to=
		timeLogsGroup.GET("/:id", handler.GetTimeLog)       // One of my logs
		timeLogsGroup.PATCH("/:id", handler.UpdateTimeLog)  // Edit an unapproved log
		timeLogsGroup.DELETE("/:id", handler.DeleteTimeLog) // Remove an unapproved log

		managers := timeLogsGroup.Group("", api.RequireRole(auth.ManagerTier...))
		managers.GET("/task/:taskId", handler.GetTaskTimeLogs)          // Everyone's logs on a task
		managers.GET("/project/:projectId", handler.GetProjectTimeLogs) // Everyone's logs on a project
	}
}
