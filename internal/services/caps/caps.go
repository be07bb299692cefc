package caps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
)

// DefaultDailyHours is the ceiling applied when none is configured.
const DefaultDailyHours = 8.0

// epsilon absorbs float noise from hour fractions so 8.0 exactly passes.
const epsilon = 1e-9

type logFinder interface {
	Find(ctx context.Context, filter db.TimeLogFilter) ([]db.TimeLog, error)
}

// Exclude leaves existing logs out of the day total. TaskID is set when an
// entry replaces a task's hours; LogID when a single log is being edited.
type Exclude struct {
	TaskID *uuid.UUID
	LogID  *uuid.UUID
}

// Validator enforces the daily hour ceiling. It only reads.
type Validator struct {
	logs     logFinder
	capHours float64
	log      *slog.Logger
}

func NewValidator(logs logFinder, capHours float64, log *slog.Logger) *Validator {
	if capHours <= 0 {
		capHours = DefaultDailyHours
	}
	return &Validator{
		logs:     logs,
		capHours: capHours,
		log:      log.With(slog.String("service", "caps")),
	}
}

// Cap returns the configured daily ceiling in hours.
func (v *Validator) Cap() float64 { return v.capHours }

// DayTotal sums the user's logged hours on date, minus excluded logs.
func (v *Validator) DayTotal(ctx context.Context, userID string, date time.Time, ex Exclude) (float64, error) {
	date = calendar.Normalize(date)
	logs, err := v.logs.Find(ctx, db.TimeLogFilter{UserID: userID, From: &date, To: &date})
	if err != nil {
		return 0, fmt.Errorf("load day total: %w", err)
	}

	var total float64
	for _, l := range logs {
		if ex.TaskID != nil && l.TaskID == *ex.TaskID {
			continue
		}
		if ex.LogID != nil && l.ID == *ex.LogID {
			continue
		}
		total += l.DurationHours
	}
	return total, nil
}

// Check fails with apperr.ErrCapExceeded when adding candidate hours to the
// user's other logs on date would go over the ceiling.
func (v *Validator) Check(ctx context.Context, userID string, date time.Time, candidate float64, ex Exclude) error {
	existing, err := v.DayTotal(ctx, userID, date, ex)
	if err != nil {
		return err
	}

	if existing+candidate > v.capHours+epsilon {
		v.log.Info("cap-check:exceeded",
			"userID", userID,
			"date", calendar.Normalize(date).Format(calendar.DateLayout),
			"existing", existing,
			"candidate", candidate,
		)
		return apperr.New(apperr.KindCapExceeded,
			"daily cap of %.2fh exceeded on %s: %.2fh already logged, %.2fh requested",
			v.capHours, calendar.Normalize(date).Format(calendar.DateLayout), existing, candidate)
	}
	return nil
}
