package timesheets

import (
	"github.com/JorgeSaicoski/microservice-commons/middleware"
	"github.com/gin-gonic/gin"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/approvals"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timesheets"
)

// RegisterRoutes registers all timesheet related routes
func RegisterRoutes(
	router *gin.RouterGroup,
	timesheetService *timesheets.Service,
	approvalService *approvals.Service,
	authMiddleware gin.HandlerFunc,
) {
	handler := NewTimesheetHandler(timesheetService, approvalService)

	timesheetsGroup := router.Group("/timesheets")
	timesheetsGroup.Use(
		middleware.DefaultLoggingMiddleware(),
		authMiddleware,
	)
	{
		// Reads
		timesheetsGroup.GET("", handler.ListTimesheets)     // History, ?userId=
		timesheetsGroup.GET("/week/:week", handler.GetWeek) // 2026-W42 or any date in the week, ?userId=
		timesheetsGroup.GET("/:id", handler.GetTimesheet)

		// Owner actions
		timesheetsGroup.PUT("/:id/entries", handler.SaveEntries) // Weekly grid save
		timesheetsGroup.POST("/:id/submit", handler.Submit)

		// Review
		managers := timesheetsGroup.Group("", api.RequireRole(auth.ManagerTier...))
		managers.GET("/pending", handler.ListPending)
		managers.POST("/:id/approve", handler.Approve)
		managers.POST("/:id/reject", handler.Reject)
	}
}
