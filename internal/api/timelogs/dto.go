package timelogs

import (
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
)

// Request DTOs

type CreateTimeLogRequest struct {
	TaskID      uuid.UUID `json:"taskId" binding:"required"`
	Date        string    `json:"date"` // YYYY-MM-DD, defaults to the day of startTime
	StartTime   time.Time `json:"startTime" binding:"required"`
	EndTime     time.Time `json:"endTime" binding:"required"`
	Description string    `json:"description" binding:"max=2000"`
	IsManual    *bool     `json:"isManual"` // defaults to true
}

type UpdateTimeLogRequest struct {
	TaskID      *uuid.UUID `json:"taskId"`
	Date        *string    `json:"date"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
}

// Response DTOs

type TimeLogResponse struct {
	ID            uuid.UUID  `json:"id"`
	UserID        string     `json:"userId"`
	TaskID        uuid.UUID  `json:"taskId"`
	ProjectID     uuid.UUID  `json:"projectId"`
	Date          string     `json:"date"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	DurationHours float64    `json:"durationHours"`
	Description   string     `json:"description"`
	IsManual      bool       `json:"isManual"`
	IsApproved    bool       `json:"isApproved"`
	ApprovedBy    *string    `json:"approvedBy"`
	ApprovedAt    *time.Time `json:"approvedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Conversion methods

func TimeLogToResponse(log *db.TimeLog) TimeLogResponse {
	return TimeLogResponse{
		ID:            log.ID,
		UserID:        log.UserID,
		TaskID:        log.TaskID,
		ProjectID:     log.ProjectID,
		Date:          log.Date.Format(calendar.DateLayout),
		StartTime:     log.StartTime,
		EndTime:       log.EndTime,
		DurationHours: log.DurationHours,
		Description:   log.Description,
		IsManual:      log.IsManual,
		IsApproved:    log.IsApproved,
		ApprovedBy:    log.ApprovedBy,
		ApprovedAt:    log.ApprovedAt,
		CreatedAt:     log.CreatedAt,
		UpdatedAt:     log.UpdatedAt,
	}
}

func TimeLogsToResponse(logs []db.TimeLog) []TimeLogResponse {
	responses := make([]TimeLogResponse, len(logs))
	for i := range logs {
		responses[i] = TimeLogToResponse(&logs[i])
	}
	return responses
}
