package timelogs

import (
	"context"
	"log/slog"
	"slices"
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

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type logRepo interface {
	Create(ctx context.Context, log *db.TimeLog) error
	Update(ctx context.Context, log *db.TimeLog) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.TimeLog, error)
	Find(ctx context.Context, filter db.TimeLogFilter) ([]db.TimeLog, error)
}

type capChecker interface {
	Check(ctx context.Context, userID string, date time.Time, candidate float64, ex caps.Exclude) error
}

// CreateInput is an explicit span of work. Date defaults to the local date
// of Start when zero.
type CreateInput struct {
	TaskID      uuid.UUID
	Date        time.Time
	Start       time.Time
	End         time.Time
	Description string
	IsManual    bool
}

// Patch changes selected fields of a log. Nil fields are left alone.
type Patch struct {
	TaskID      *uuid.UUID
	Date        *time.Time
	Start       *time.Time
	End         *time.Time
	Description *string
}

// Service owns TimeLog writes and the read queries over them.
type Service struct {
	tx     txManager
	logs   logRepo
	sheets WeekReader
	dir    directory.Lookup
	caps   capChecker
	locker lock.Locker
	loc    *time.Location
	now    func() time.Time
	log    *slog.Logger
}

func NewService(
	log *slog.Logger,
	tx txManager,
	logs logRepo,
	sheets WeekReader,
	dir directory.Lookup,
	capValidator capChecker,
	locker lock.Locker,
	loc *time.Location,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		tx:     tx,
		logs:   logs,
		sheets: sheets,
		dir:    dir,
		caps:   capValidator,
		locker: locker,
		loc:    loc,
		now:    now,
		log:    log.With(slog.String("layer", "service"), slog.String("service", "TimeLogService")),
	}
}

func (s *Service) today() time.Time {
	return calendar.DateOf(s.now(), s.loc)
}

// Create validates and stores a new log for userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*db.TimeLog, error) {
	s.log.Info("create-time-log:start", "userID", userID, "taskID", in.TaskID)

	hours, err := DeriveDuration(in.Start, in.End)
	if err != nil {
		return nil, err
	}
	date := calendar.Normalize(in.Date)
	if in.Date.IsZero() {
		date = calendar.DateOf(in.Start, s.loc)
	}
	if err := CheckNotFuture(date, s.today()); err != nil {
		return nil, err
	}

	var created *db.TimeLog
	err = lock.WithLock(ctx, s.locker, lock.UserKey(userID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			task, err := s.dir.GetTask(ctx, in.TaskID)
			if err != nil {
				return err
			}
			if err := CheckWeekOpen(ctx, s.sheets, userID, date); err != nil {
				return err
			}
			if err := s.caps.Check(ctx, userID, date, hours, caps.Exclude{}); err != nil {
				return err
			}

			log, err := Build(userID, task, date, in.Start, in.End, in.Description, in.IsManual)
			if err != nil {
				return err
			}
			if err := s.logs.Create(ctx, log); err != nil {
				return err
			}
			created = log
			return nil
		})
	})
	if err != nil {
		s.log.Warn("create-time-log:failed", "userID", userID, "err", err)
		return nil, err
	}

	s.log.Info("create-time-log:success", "timeLogID", created.ID, "hours", created.DurationHours)
	return created, nil
}

// Update applies patch to a log owned by callerID.
func (s *Service) Update(ctx context.Context, callerID string, id uuid.UUID, patch Patch) (*db.TimeLog, error) {
	s.log.Info("update-time-log:start", "timeLogID", id, "callerID", callerID)

	var updated *db.TimeLog
	err := lock.WithLock(ctx, s.locker, lock.UserKey(callerID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			log, err := s.editable(ctx, callerID, id)
			if err != nil {
				return err
			}
			oldDate := log.Date

			if patch.TaskID != nil && *patch.TaskID != log.TaskID {
				task, err := s.dir.GetTask(ctx, *patch.TaskID)
				if err != nil {
					return err
				}
				log.TaskID, log.ProjectID = task.TaskID, task.ProjectID
			}
			if patch.Start != nil {
				log.StartTime = patch.Start.UTC()
			}
			if patch.End != nil {
				log.EndTime = patch.End.UTC()
			}
			if patch.Date != nil {
				log.Date = calendar.Normalize(*patch.Date)
			}
			if patch.Description != nil {
				log.Description = *patch.Description
			}

			if err := Reprice(log); err != nil {
				return err
			}
			if err := CheckNotFuture(log.Date, s.today()); err != nil {
				return err
			}
			if err := CheckWeekOpen(ctx, s.sheets, log.UserID, oldDate); err != nil {
				return err
			}
			if !log.Date.Equal(oldDate) {
				if err := CheckWeekOpen(ctx, s.sheets, log.UserID, log.Date); err != nil {
					return err
				}
			}
			if err := s.caps.Check(ctx, log.UserID, log.Date, log.DurationHours, caps.Exclude{LogID: &log.ID}); err != nil {
				return err
			}

			if err := s.logs.Update(ctx, log); err != nil {
				return err
			}
			updated = log
			return nil
		})
	})
	if err != nil {
		s.log.Warn("update-time-log:failed", "timeLogID", id, "err", err)
		return nil, err
	}

	s.log.Info("update-time-log:success", "timeLogID", id, "hours", updated.DurationHours)
	return updated, nil
}

// Delete removes a log owned by callerID.
func (s *Service) Delete(ctx context.Context, callerID string, id uuid.UUID) error {
	s.log.Info("delete-time-log:start", "timeLogID", id, "callerID", callerID)

	err := lock.WithLock(ctx, s.locker, lock.UserKey(callerID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			log, err := s.editable(ctx, callerID, id)
			if err != nil {
				return err
			}
			if err := CheckWeekOpen(ctx, s.sheets, log.UserID, log.Date); err != nil {
				return err
			}
			return s.logs.Delete(ctx, id)
		})
	})
	if err != nil {
		s.log.Warn("delete-time-log:failed", "timeLogID", id, "err", err)
		return err
	}

	s.log.Info("delete-time-log:success", "timeLogID", id)
	return nil
}

// editable loads a log and applies the owner and approval guards.
func (s *Service) editable(ctx context.Context, callerID string, id uuid.UUID) (*db.TimeLog, error) {
	log, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if log.UserID != callerID {
		return nil, apperr.New(apperr.KindNotOwner, "time log %s belongs to another user", id)
	}
	if log.IsApproved {
		return nil, apperr.New(apperr.KindImmutable, "time log %s is approved and can no longer change", id)
	}
	return log, nil
}

// Get returns one log. Only its owner may read it through this path.
func (s *Service) Get(ctx context.Context, callerID string, id uuid.UUID) (*db.TimeLog, error) {
	log, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if log.UserID != callerID {
		return nil, apperr.New(apperr.KindNotOwner, "time log %s belongs to another user", id)
	}
	return log, nil
}

// ListByUserRange returns the user's logs dated within [from, to].
func (s *Service) ListByUserRange(ctx context.Context, userID string, from, to time.Time) ([]db.TimeLog, error) {
	from, to = calendar.Normalize(from), calendar.Normalize(to)
	if to.Before(from) {
		return nil, apperr.New(apperr.KindInvalidRange, "from %s is after to %s",
			from.Format(calendar.DateLayout), to.Format(calendar.DateLayout))
	}
	return s.logs.Find(ctx, db.TimeLogFilter{UserID: userID, From: &from, To: &to})
}

// ListByTask returns everyone's logs on a task. Below super admin the caller
// must supervise the task's project.
func (s *Service) ListByTask(ctx context.Context, caller auth.Identity, taskID uuid.UUID) ([]db.TimeLog, error) {
	if !caller.IsSuperAdmin() {
		info, err := s.dir.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if err := s.authorizeProject(ctx, caller, info.ProjectID); err != nil {
			return nil, err
		}
	}
	return s.logs.Find(ctx, db.TimeLogFilter{TaskID: &taskID})
}

// ListByProject returns everyone's logs on a project, under the same rule as
// ListByTask.
func (s *Service) ListByProject(ctx context.Context, caller auth.Identity, projectID uuid.UUID) ([]db.TimeLog, error) {
	if err := s.authorizeProject(ctx, caller, projectID); err != nil {
		return nil, err
	}
	return s.logs.Find(ctx, db.TimeLogFilter{ProjectID: &projectID})
}

func (s *Service) authorizeProject(ctx context.Context, caller auth.Identity, projectID uuid.UUID) error {
	if caller.IsSuperAdmin() {
		return nil
	}
	if !caller.IsManagerTier() {
		return apperr.Forbidden("role %s cannot read project time logs", caller.Role)
	}
	supervisors, err := s.dir.ProjectSupervisors(ctx, []uuid.UUID{projectID})
	if err != nil {
		return err
	}
	if !slices.Contains(supervisors, caller.UserID) {
		return apperr.Forbidden("user %s does not supervise project %s", caller.UserID, projectID)
	}
	return nil
}
