package timers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/caps"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timelogs"
)

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type timerRepo interface {
	Create(ctx context.Context, s *db.TimerSession) error
	GetActive(ctx context.Context, userID string) (*db.TimerSession, error)
	GetActiveForUpdate(ctx context.Context, userID string) (*db.TimerSession, error)
	Update(ctx context.Context, s *db.TimerSession) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type logCreator interface {
	Create(ctx context.Context, log *db.TimeLog) error
}

type capChecker interface {
	Check(ctx context.Context, userID string, date time.Time, candidate float64, ex caps.Exclude) error
}

// ActiveTimer is a session enriched with display names and, while running,
// the elapsed time as of the moment it was read.
type ActiveTimer struct {
	db.TimerSession
	TaskTitle      string `json:"taskTitle"`
	ProjectName    string `json:"projectName"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	Elapsed        string `json:"elapsed"`
}

// StopResult is what a successful stop produced.
type StopResult struct {
	Session  *db.TimerSession `json:"session"`
	TimeLog  *db.TimeLog      `json:"timeLog"`
	Duration string           `json:"duration"` // HH:MM:SS
}

// Service runs per-user timers and turns stopped ones into time logs.
type Service struct {
	tx     txManager
	timers timerRepo
	logs   logCreator
	sheets timelogs.WeekReader
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
	timers timerRepo,
	logs logCreator,
	sheets timelogs.WeekReader,
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
		timers: timers,
		logs:   logs,
		sheets: sheets,
		dir:    dir,
		caps:   capValidator,
		locker: locker,
		loc:    loc,
		now:    now,
		log:    log.With(slog.String("layer", "service"), slog.String("service", "TimerService")),
	}
}

// Start begins a timer on taskID. A user has at most one running timer; the
// store's unique index backs the early check below.
func (s *Service) Start(ctx context.Context, userID string, taskID uuid.UUID, description string) (*ActiveTimer, error) {
	s.log.Info("start-timer:start", "userID", userID, "taskID", taskID)

	if _, err := s.timers.GetActive(ctx, userID); err == nil {
		return nil, apperr.Conflict("user %s already has an active timer", userID)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	task, err := s.dir.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	session := &db.TimerSession{
		ID:          uuid.New(),
		UserID:      userID,
		TaskID:      task.TaskID,
		ProjectID:   task.ProjectID,
		StartTime:   s.now().UTC(),
		Description: description,
		IsActive:    true,
	}
	if err := s.timers.Create(ctx, session); err != nil {
		s.log.Warn("start-timer:create-failed", "userID", userID, "err", err)
		return nil, err
	}

	s.log.Info("start-timer:success", "sessionID", session.ID)
	return s.enrich(session, task, session.StartTime), nil
}

// Stop closes the running timer and records its span as a time log. When the
// daily cap would be exceeded nothing is written and the timer keeps running.
func (s *Service) Stop(ctx context.Context, userID string) (*StopResult, error) {
	s.log.Info("stop-timer:start", "userID", userID)

	var result *StopResult
	err := lock.WithLock(ctx, s.locker, lock.UserKey(userID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			session, err := s.timers.GetActiveForUpdate(ctx, userID)
			if err != nil {
				return err
			}

			end := s.now().UTC()
			elapsed := end.Sub(session.StartTime)
			if elapsed <= 0 {
				return apperr.New(apperr.KindInvalidRange, "timer %s has not run yet", session.ID)
			}
			hours := calendar.Hours(elapsed)
			date := calendar.DateOf(session.StartTime, s.loc)

			if err := timelogs.CheckWeekOpen(ctx, s.sheets, userID, date); err != nil {
				return err
			}
			if err := s.caps.Check(ctx, userID, date, hours, caps.Exclude{}); err != nil {
				s.log.Info("stop-timer:cap-exceeded", "sessionID", session.ID, "hours", hours)
				return err
			}

			task := directory.TaskInfo{TaskID: session.TaskID, ProjectID: session.ProjectID}
			log, err := timelogs.Build(userID, task, date, session.StartTime, end, session.Description, false)
			if err != nil {
				return err
			}
			if err := s.logs.Create(ctx, log); err != nil {
				return err
			}

			session.EndTime = &end
			session.DurationSeconds = int64(elapsed / time.Second)
			session.IsActive = false
			if err := s.timers.Update(ctx, session); err != nil {
				return err
			}

			result = &StopResult{Session: session, TimeLog: log, Duration: calendar.FormatHMS(elapsed)}
			return nil
		})
	})
	if err != nil {
		s.log.Warn("stop-timer:failed", "userID", userID, "err", err)
		return nil, err
	}

	s.log.Info("stop-timer:success", "sessionID", result.Session.ID, "timeLogID", result.TimeLog.ID, "duration", result.Duration)
	return result, nil
}

// GetActive returns the running timer of the user, or nil when there is none.
func (s *Service) GetActive(ctx context.Context, userID string) (*ActiveTimer, error) {
	session, err := s.timers.GetActive(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task, err := s.dir.GetTask(ctx, session.TaskID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return s.enrich(session, task, s.now().UTC()), nil
}

// Discard deletes the running timer without recording any time.
func (s *Service) Discard(ctx context.Context, userID string) error {
	s.log.Info("discard-timer:start", "userID", userID)

	err := lock.WithLock(ctx, s.locker, lock.UserKey(userID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			session, err := s.timers.GetActiveForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			return s.timers.Delete(ctx, session.ID)
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("discard-timer:success", "userID", userID)
	return nil
}

func (s *Service) enrich(session *db.TimerSession, task directory.TaskInfo, asOf time.Time) *ActiveTimer {
	elapsed := asOf.Sub(session.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	return &ActiveTimer{
		TimerSession:   *session,
		TaskTitle:      task.TaskTitle,
		ProjectName:    task.ProjectName,
		ElapsedSeconds: int64(elapsed / time.Second),
		Elapsed:        calendar.FormatHMS(elapsed),
	}
}
