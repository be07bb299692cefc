package timesheets

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/caps"
)

const totalEpsilon = 1e-9

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sheetRepo interface {
	CreateIfAbsent(ctx context.Context, ts *db.Timesheet) (*db.Timesheet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.Timesheet, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*db.Timesheet, error)
	Update(ctx context.Context, ts *db.Timesheet) error
	ReplaceEntries(ctx context.Context, timesheetID uuid.UUID, logIDs []uuid.UUID) error
	ListByUser(ctx context.Context, userID string) ([]db.Timesheet, error)
}

type logRepo interface {
	Create(ctx context.Context, log *db.TimeLog) error
	Update(ctx context.Context, log *db.TimeLog) error
	Delete(ctx context.Context, id uuid.UUID) error
	Find(ctx context.Context, filter db.TimeLogFilter) ([]db.TimeLog, error)
}

type capChecker interface {
	Check(ctx context.Context, userID string, date time.Time, candidate float64, ex caps.Exclude) error
}

// ManualEntry sets the hours of one task on one day of the week. Hours <= 0
// removes whatever was logged for that task on that day.
type ManualEntry struct {
	TaskID    uuid.UUID
	ProjectID uuid.UUID // optional; must match the task's project when set
	DayIndex  int       // 0 = Monday
	Hours     float64
}

// Service keeps weekly timesheets in step with the time logs they cover.
type Service struct {
	tx        txManager
	sheets    sheetRepo
	logs      logRepo
	dir       directory.Lookup
	caps      capChecker
	locker    lock.Locker
	loc       *time.Location
	startHour int
	now       func() time.Time
	log       *slog.Logger
}

func NewService(
	log *slog.Logger,
	tx txManager,
	sheets sheetRepo,
	logs logRepo,
	dir directory.Lookup,
	capValidator capChecker,
	locker lock.Locker,
	loc *time.Location,
	manualStartHour int,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		tx:        tx,
		sheets:    sheets,
		logs:      logs,
		dir:       dir,
		caps:      capValidator,
		locker:    locker,
		loc:       loc,
		startHour: manualStartHour,
		now:       now,
		log:       log.With(slog.String("layer", "service"), slog.String("service", "TimesheetService")),
	}
}

// GetOrCreate returns userID's timesheet for the week named by weekID, an ISO
// week token or any date inside the week. The row is created in draft on first
// access and its entries are reconciled with the logs before returning.
func (s *Service) GetOrCreate(ctx context.Context, caller auth.Identity, userID, weekID string) (*db.Timesheet, error) {
	if userID == "" {
		userID = caller.UserID
	}
	if err := s.authorizeView(ctx, caller, userID); err != nil {
		return nil, err
	}

	weekStart, err := calendar.ParseWeek(weekID)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	_, weekEnd := calendar.WeekBounds(weekStart)

	var ts *db.Timesheet
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ts, err = s.sheets.CreateIfAbsent(ctx, &db.Timesheet{
			ID:        uuid.New(),
			UserID:    userID,
			WeekStart: weekStart,
			WeekEnd:   weekEnd,
			Status:    db.TimesheetStatusDraft,
		})
		if err != nil {
			return err
		}
		_, err = s.Sync(ctx, ts)
		return err
	})
	if err != nil {
		s.log.Error("get-or-create-timesheet:failed", "userID", userID, "week", weekID, "err", err)
		return nil, err
	}

	s.log.Debug("get-or-create-timesheet", "timesheetID", ts.ID, "entries", len(ts.Entries), "totalHours", ts.TotalHours)
	return ts, nil
}

// Get loads one timesheet by id, reconciled.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id uuid.UUID) (*db.Timesheet, error) {
	var ts *db.Timesheet
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ts, err = s.sheets.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizeView(ctx, caller, ts.UserID); err != nil {
			return err
		}
		_, err = s.Sync(ctx, ts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// ListForUser returns every timesheet of userID, newest week first, each
// reconciled with its logs.
func (s *Service) ListForUser(ctx context.Context, caller auth.Identity, userID string) ([]db.Timesheet, error) {
	if userID == "" {
		userID = caller.UserID
	}
	if err := s.authorizeView(ctx, caller, userID); err != nil {
		return nil, err
	}

	var sheets []db.Timesheet
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		sheets, err = s.sheets.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		for i := range sheets {
			if _, err := s.Sync(ctx, &sheets[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

// Sync recomputes entries and total hours of ts from the logs dated inside
// its week and persists them when they drifted. It reports whether anything
// changed. Call it inside a transaction.
func (s *Service) Sync(ctx context.Context, ts *db.Timesheet) (bool, error) {
	from, to := calendar.Normalize(ts.WeekStart), calendar.Normalize(ts.WeekEnd)
	logs, err := s.logs.Find(ctx, db.TimeLogFilter{UserID: ts.UserID, From: &from, To: &to})
	if err != nil {
		return false, err
	}

	ids := make([]uuid.UUID, len(logs))
	var total float64
	for i, l := range logs {
		ids[i] = l.ID
		total += l.DurationHours
	}

	if sameMembers(ts.Entries, ids) && math.Abs(ts.TotalHours-total) <= totalEpsilon {
		return false, nil
	}

	s.log.Info("sync-timesheet:reconciled",
		"timesheetID", ts.ID,
		"entriesBefore", len(ts.Entries),
		"entriesAfter", len(ids),
		"totalHours", total,
	)
	ts.Entries = ids
	ts.TotalHours = total
	if err := s.sheets.ReplaceEntries(ctx, ts.ID, ids); err != nil {
		return false, err
	}
	if err := s.sheets.Update(ctx, ts); err != nil {
		return false, err
	}
	return true, nil
}

func sameMembers(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// authorizeView lets a caller see their own timesheets, super admins see
// everyone's, and manager-tier callers see those of users they supervise.
func (s *Service) authorizeView(ctx context.Context, caller auth.Identity, userID string) error {
	if caller.UserID == userID || caller.IsSuperAdmin() {
		return nil
	}
	if caller.IsManagerTier() {
		ok, err := directory.Supervises(ctx, s.dir, caller.UserID, userID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.Forbidden("user %s may not view timesheets of %s", caller.UserID, userID)
}
