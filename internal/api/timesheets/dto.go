package timesheets

import (
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timesheets"
)

// Request DTOs

type ManualEntryRequest struct {
	TaskID    uuid.UUID `json:"taskId" binding:"required"`
	ProjectID uuid.UUID `json:"projectId"`
	DayIndex  int       `json:"dayIndex" binding:"min=0,max=6"` // 0 = Monday
	Hours     float64   `json:"hours" binding:"lte=24"`         // <= 0 clears the cell
}

type SaveEntriesRequest struct {
	Entries []ManualEntryRequest `json:"entries" binding:"required,dive"`
}

type ApproveRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// Response DTOs

type TimesheetResponse struct {
	ID              uuid.UUID   `json:"id"`
	UserID          string      `json:"userId"`
	Week            string      `json:"week"` // ISO week token, e.g. 2026-W42
	WeekStart       string      `json:"weekStart"`
	WeekEnd         string      `json:"weekEnd"`
	TotalHours      float64     `json:"totalHours"`
	Status          string      `json:"status"`
	Entries         []uuid.UUID `json:"entries"`
	SubmittedAt     *time.Time  `json:"submittedAt"`
	ApprovedBy      *string     `json:"approvedBy"`
	ApprovedAt      *time.Time  `json:"approvedAt"`
	ApprovalNote    *string     `json:"approvalNote"`
	RejectedBy      *string     `json:"rejectedBy"`
	RejectedAt      *time.Time  `json:"rejectedAt"`
	RejectionReason *string     `json:"rejectionReason"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Conversion methods

func (r SaveEntriesRequest) toEntries() []timesheets.ManualEntry {
	out := make([]timesheets.ManualEntry, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = timesheets.ManualEntry{
			TaskID:    e.TaskID,
			ProjectID: e.ProjectID,
			DayIndex:  e.DayIndex,
			Hours:     e.Hours,
		}
	}
	return out
}

func TimesheetToResponse(ts *db.Timesheet) TimesheetResponse {
	entries := ts.Entries
	if entries == nil {
		entries = []uuid.UUID{}
	}
	return TimesheetResponse{
		ID:              ts.ID,
		UserID:          ts.UserID,
		Week:            calendar.WeekToken(ts.WeekStart),
		WeekStart:       ts.WeekStart.Format(calendar.DateLayout),
		WeekEnd:         ts.WeekEnd.Format(calendar.DateLayout),
		TotalHours:      ts.TotalHours,
		Status:          ts.Status,
		Entries:         entries,
		SubmittedAt:     ts.SubmittedAt,
		ApprovedBy:      ts.ApprovedBy,
		ApprovedAt:      ts.ApprovedAt,
		ApprovalNote:    ts.ApprovalNote,
		RejectedBy:      ts.RejectedBy,
		RejectedAt:      ts.RejectedAt,
		RejectionReason: ts.RejectionReason,
		CreatedAt:       ts.CreatedAt,
		UpdatedAt:       ts.UpdatedAt,
	}
}

func TimesheetsToResponse(sheets []db.Timesheet) []TimesheetResponse {
	responses := make([]TimesheetResponse, len(sheets))
	for i := range sheets {
		responses[i] = TimesheetToResponse(&sheets[i])
	}
	return responses
}
