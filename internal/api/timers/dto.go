package timers

import (
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api/timelogs"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timers"
)

// Request DTOs

type StartTimerRequest struct {
	TaskID      uuid.UUID `json:"taskId" binding:"required"`
	Description string    `json:"description" binding:"max=2000"`
}

// Response DTOs

type TimerSessionResponse struct {
	ID              uuid.UUID  `json:"id"`
	UserID          string     `json:"userId"`
	TaskID          uuid.UUID  `json:"taskId"`
	ProjectID       uuid.UUID  `json:"projectId"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationSeconds int64      `json:"durationSeconds"`
	Description     string     `json:"description"`
	IsActive        bool       `json:"isActive"`
}

type ActiveTimerResponse struct {
	TimerSessionResponse
	TaskTitle      string `json:"taskTitle"`
	ProjectName    string `json:"projectName"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	Elapsed        string `json:"elapsed"` // HH:MM:SS
}

type ActiveTimerEnvelope struct {
	Active bool                 `json:"active"`
	Timer  *ActiveTimerResponse `json:"timer"` // nil when no timer is running
}

type StopTimerResponse struct {
	Session  TimerSessionResponse     `json:"session"`
	TimeLog  timelogs.TimeLogResponse `json:"timeLog"`
	Duration string                   `json:"duration"`
}

// Conversion methods

func TimerSessionToResponse(s *db.TimerSession) TimerSessionResponse {
	return TimerSessionResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		TaskID:          s.TaskID,
		ProjectID:       s.ProjectID,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationSeconds: s.DurationSeconds,
		Description:     s.Description,
		IsActive:        s.IsActive,
	}
}

func ActiveTimerToResponse(t *timers.ActiveTimer) ActiveTimerResponse {
	return ActiveTimerResponse{
		TimerSessionResponse: TimerSessionToResponse(&t.TimerSession),
		TaskTitle:            t.TaskTitle,
		ProjectName:          t.ProjectName,
		ElapsedSeconds:       t.ElapsedSeconds,
		Elapsed:              t.Elapsed,
	}
}

func StopResultToResponse(r *timers.StopResult) StopTimerResponse {
	return StopTimerResponse{
		Session:  TimerSessionToResponse(r.Session),
		TimeLog:  timelogs.TimeLogToResponse(r.TimeLog),
		Duration: r.Duration,
	}
}
