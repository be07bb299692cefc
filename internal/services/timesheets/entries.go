package timesheets

import (
	"context"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/caps"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timelogs"
)

// ApplyManualEntries saves a batch of per-day task hours typed into the
// owner's draft or rejected timesheet. The batch is all or nothing: the first
// failing entry rolls back every earlier one. The timesheet is resynced from
// the resulting logs before it is returned.
func (s *Service) ApplyManualEntries(ctx context.Context, timesheetID uuid.UUID, callerID string, entries []ManualEntry) (*db.Timesheet, error) {
	s.log.Info("apply-manual-entries:start", "timesheetID", timesheetID, "callerID", callerID, "entries", len(entries))

	var ts *db.Timesheet
	err := lock.WithLock(ctx, s.locker, lock.UserKey(callerID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			ts, err = s.sheets.GetByIDForUpdate(ctx, timesheetID)
			if err != nil {
				return err
			}
			if ts.UserID != callerID {
				return apperr.Forbidden("timesheet %s belongs to another user", timesheetID)
			}
			if ts.Status != db.TimesheetStatusDraft && ts.Status != db.TimesheetStatusRejected {
				return apperr.New(apperr.KindNotEditable, "timesheet %s is %s", timesheetID, ts.Status)
			}

			for i, e := range entries {
				if err := s.applyEntry(ctx, ts, e); err != nil {
					s.log.Info("apply-manual-entries:entry-failed", "timesheetID", timesheetID, "index", i, "err", err)
					return err
				}
			}

			_, err = s.Sync(ctx, ts)
			return err
		})
	})
	if err != nil {
		s.log.Warn("apply-manual-entries:failed", "timesheetID", timesheetID, "err", err)
		return nil, err
	}

	s.log.Info("apply-manual-entries:success", "timesheetID", timesheetID, "totalHours", ts.TotalHours)
	return ts, nil
}

func (s *Service) applyEntry(ctx context.Context, ts *db.Timesheet, e ManualEntry) error {
	if e.DayIndex < 0 || e.DayIndex > 6 {
		return apperr.Validation("day index %d outside 0..6", e.DayIndex)
	}
	date := calendar.Normalize(ts.WeekStart).AddDate(0, 0, e.DayIndex)

	existing, err := s.logs.Find(ctx, db.TimeLogFilter{UserID: ts.UserID, TaskID: &e.TaskID, From: &date, To: &date})
	if err != nil {
		return err
	}
	for _, l := range existing {
		if l.IsApproved {
			return apperr.New(apperr.KindImmutable, "time log %s is approved and can no longer change", l.ID)
		}
	}

	if e.Hours <= 0 {
		for _, l := range existing {
			if err := s.logs.Delete(ctx, l.ID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := timelogs.CheckNotFuture(date, calendar.DateOf(s.now(), s.loc)); err != nil {
		return err
	}
	task, err := s.dir.GetTask(ctx, e.TaskID)
	if err != nil {
		return err
	}
	if e.ProjectID != uuid.Nil && e.ProjectID != task.ProjectID {
		return apperr.Validation("task %s does not belong to project %s", e.TaskID, e.ProjectID)
	}

	start := calendar.At(date, s.startHour, s.loc)
	end := start.Add(calendar.FromHours(e.Hours))
	hours, err := timelogs.DeriveDuration(start, end)
	if err != nil {
		return err
	}
	if err := s.caps.Check(ctx, ts.UserID, date, hours, caps.Exclude{TaskID: &e.TaskID}); err != nil {
		return err
	}

	if len(existing) == 0 {
		log, err := timelogs.Build(ts.UserID, task, date, start, end, "", true)
		if err != nil {
			return err
		}
		return s.logs.Create(ctx, log)
	}

	keep := existing[0]
	keep.ProjectID = task.ProjectID
	keep.StartTime = start.UTC()
	keep.EndTime = end.UTC()
	keep.IsManual = true
	if err := timelogs.Reprice(&keep); err != nil {
		return err
	}
	if err := s.logs.Update(ctx, &keep); err != nil {
		return err
	}
	for _, l := range existing[1:] {
		if err := s.logs.Delete(ctx, l.ID); err != nil {
			return err
		}
	}
	return nil
}
