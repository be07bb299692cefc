package timelogs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
)

// DeriveDuration returns end-start in hours. It is the only source of a
// log's duration; input never carries one.
func DeriveDuration(start, end time.Time) (float64, error) {
	if !start.Before(end) {
		return 0, apperr.New(apperr.KindInvalidRange,
			"start %s must be before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return calendar.Hours(end.Sub(start)), nil
}

// Build assembles a new TimeLog for task with its duration derived from the span.
func Build(userID string, task directory.TaskInfo, date, start, end time.Time, description string, isManual bool) (*db.TimeLog, error) {
	hours, err := DeriveDuration(start, end)
	if err != nil {
		return nil, err
	}
	return &db.TimeLog{
		ID:            uuid.New(),
		UserID:        userID,
		TaskID:        task.TaskID,
		ProjectID:     task.ProjectID,
		Date:          calendar.Normalize(date),
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationHours: hours,
		Description:   description,
		IsManual:      isManual,
	}, nil
}

// Reprice recomputes the derived duration of an existing log after its span changed.
func Reprice(log *db.TimeLog) error {
	hours, err := DeriveDuration(log.StartTime, log.EndTime)
	if err != nil {
		return err
	}
	log.DurationHours = hours
	return nil
}

// CheckNotFuture fails with apperr.ErrFutureDate when date is after today.
func CheckNotFuture(date, today time.Time) error {
	if calendar.Normalize(date).After(calendar.Normalize(today)) {
		return apperr.New(apperr.KindFutureDate, "date %s is in the future",
			calendar.Normalize(date).Format(calendar.DateLayout))
	}
	return nil
}

// WeekReader finds a user's timesheet for a week.
type WeekReader interface {
	GetByUserWeek(ctx context.Context, userID string, weekStart time.Time) (*db.Timesheet, error)
}

// CheckWeekOpen fails with apperr.ErrNotEditable when the week containing
// date has a submitted or approved timesheet. A week with no timesheet yet
// is open.
func CheckWeekOpen(ctx context.Context, sheets WeekReader, userID string, date time.Time) error {
	ts, err := sheets.GetByUserWeek(ctx, userID, calendar.WeekStart(date))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	switch ts.Status {
	case db.TimesheetStatusSubmitted, db.TimesheetStatusApproved:
		return apperr.New(apperr.KindNotEditable, "week %s is %s and cannot take changes",
			calendar.WeekToken(date), ts.Status)
	}
	return nil
}
