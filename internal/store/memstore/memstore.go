// Package memstore is an in-memory implementation of the store repositories.
// Transactions are serialised and roll back by restoring a snapshot, and the
// same uniqueness rules as the database schema are enforced.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
)

type txKey struct{}

type state struct {
	logs    map[uuid.UUID]db.TimeLog
	timers  map[uuid.UUID]db.TimerSession
	sheets  map[uuid.UUID]db.Timesheet
	entries map[uuid.UUID][]uuid.UUID
}

func (s state) clone() state {
	entries := make(map[uuid.UUID][]uuid.UUID, len(s.entries))
	for k, v := range s.entries {
		entries[k] = slices.Clone(v)
	}
	return state{
		logs:    maps.Clone(s.logs),
		timers:  maps.Clone(s.timers),
		sheets:  maps.Clone(s.sheets),
		entries: entries,
	}
}

// Store holds every table. Use the accessor methods to get repositories.
type Store struct {
	txMu sync.Mutex // held for the whole of a transaction
	mu   sync.Mutex // guards st
	st   state

	now func() time.Time

	Directory *Directory
}

func New() *Store {
	return &Store{
		st: state{
			logs:    map[uuid.UUID]db.TimeLog{},
			timers:  map[uuid.UUID]db.TimerSession{},
			sheets:  map[uuid.UUID]db.Timesheet{},
			entries: map[uuid.UUID][]uuid.UUID{},
		},
		now:       func() time.Time { return time.Now().UTC() },
		Directory: NewDirectory(),
	}
}

// RunInTx runs fn with exclusive access to the store. Any error restores the
// state from before the call. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.restore(snapshot)
			panic(r)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) restore(snapshot state) {
	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
}

func (s *Store) TimeLogs() *TimeLogRepo     { return &TimeLogRepo{s: s} }
func (s *Store) Timers() *TimerRepo         { return &TimerRepo{s: s} }
func (s *Store) Timesheets() *TimesheetRepo { return &TimesheetRepo{s: s} }

// ---------------------------------------------------------------------------
// Time logs

type TimeLogRepo struct{ s *Store }

func (r *TimeLogRepo) Create(_ context.Context, log *db.TimeLog) error {
	if err := checkLog(log); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.logs[log.ID]; ok {
		return apperr.Conflict("time log %s already exists", log.ID)
	}
	now := r.s.now()
	log.CreatedAt, log.UpdatedAt = now, now
	r.s.st.logs[log.ID] = *log
	return nil
}

func (r *TimeLogRepo) Update(_ context.Context, log *db.TimeLog) error {
	if err := checkLog(log); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.st.logs[log.ID]
	if !ok {
		return apperr.NotFound("time log %s not found", log.ID)
	}
	log.CreatedAt = old.CreatedAt
	log.UpdatedAt = r.s.now()
	r.s.st.logs[log.ID] = *log
	return nil
}

// checkLog mirrors the CHECK constraints of the time_logs table.
func checkLog(log *db.TimeLog) error {
	if !log.StartTime.Before(log.EndTime) || log.DurationHours <= 0 {
		return apperr.Validation("time log %s violates chk_time_logs_span", log.ID)
	}
	return nil
}

func (r *TimeLogRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.logs[id]; !ok {
		return apperr.NotFound("time log %s not found", id)
	}
	delete(r.s.st.logs, id)
	return nil
}

func (r *TimeLogRepo) GetByID(_ context.Context, id uuid.UUID) (*db.TimeLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log, ok := r.s.st.logs[id]
	if !ok {
		return nil, apperr.NotFound("time log %s not found", id)
	}
	return &log, nil
}

func (r *TimeLogRepo) Find(_ context.Context, f db.TimeLogFilter) ([]db.TimeLog, error) {
	var ids map[uuid.UUID]bool
	if f.IDs != nil {
		ids = make(map[uuid.UUID]bool, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = true
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []db.TimeLog{}
	for _, log := range r.s.st.logs {
		switch {
		case f.UserID != "" && log.UserID != f.UserID:
		case f.TaskID != nil && log.TaskID != *f.TaskID:
		case f.ProjectID != nil && log.ProjectID != *f.ProjectID:
		case f.From != nil && log.Date.Before(*f.From):
		case f.To != nil && log.Date.After(*f.To):
		case ids != nil && !ids[log.ID]:
		default:
			out = append(out, log)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID.String() < b.ID.String()
	})
	return out, nil
}

func (r *TimeLogRepo) MarkApproved(_ context.Context, ids []uuid.UUID, approverID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		log, ok := r.s.st.logs[id]
		if !ok {
			continue
		}
		approver, ts := approverID, at
		log.IsApproved = true
		log.ApprovedBy = &approver
		log.ApprovedAt = &ts
		log.UpdatedAt = at
		r.s.st.logs[id] = log
	}
	return nil
}

// ---------------------------------------------------------------------------
// Timer sessions

type TimerRepo struct{ s *Store }

func (r *TimerRepo) Create(_ context.Context, t *db.TimerSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.IsActive {
		for _, other := range r.s.st.timers {
			if other.IsActive && other.UserID == t.UserID {
				return apperr.Conflict("active timer for user %s already exists", t.UserID)
			}
		}
	}
	now := r.s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.st.timers[t.ID] = *t
	return nil
}

func (r *TimerRepo) GetActive(_ context.Context, userID string) (*db.TimerSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.st.timers {
		if t.IsActive && t.UserID == userID {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("active timer for user %s not found", userID)
}

func (r *TimerRepo) GetActiveForUpdate(ctx context.Context, userID string) (*db.TimerSession, error) {
	return r.GetActive(ctx, userID)
}

func (r *TimerRepo) Update(_ context.Context, t *db.TimerSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.st.timers[t.ID]
	if !ok {
		return apperr.NotFound("timer session %s not found", t.ID)
	}
	if t.IsActive {
		for id, other := range r.s.st.timers {
			if id != t.ID && other.IsActive && other.UserID == t.UserID {
				return apperr.Conflict("active timer for user %s already exists", t.UserID)
			}
		}
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = r.s.now()
	r.s.st.timers[t.ID] = *t
	return nil
}

func (r *TimerRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.timers[id]; !ok {
		return apperr.NotFound("timer session %s not found", id)
	}
	delete(r.s.st.timers, id)
	return nil
}

// CountActive returns how many sessions of the user are active.
func (r *TimerRepo) CountActive(userID string) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.st.timers {
		if t.IsActive && t.UserID == userID {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Timesheets

type TimesheetRepo struct{ s *Store }

func (r *TimesheetRepo) CreateIfAbsent(_ context.Context, ts *db.Timesheet) (*db.Timesheet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.sheets {
		if existing.UserID == ts.UserID && existing.WeekStart.Equal(ts.WeekStart) {
			return r.withEntries(existing), nil
		}
	}
	now := r.s.now()
	ts.CreatedAt, ts.UpdatedAt = now, now
	stored := *ts
	stored.Entries = nil
	r.s.st.sheets[ts.ID] = stored
	return r.withEntries(stored), nil
}

func (r *TimesheetRepo) GetByUserWeek(_ context.Context, userID string, weekStart time.Time) (*db.Timesheet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ts := range r.s.st.sheets {
		if ts.UserID == userID && ts.WeekStart.Equal(weekStart) {
			return r.withEntries(ts), nil
		}
	}
	return nil, apperr.NotFound("timesheet %s@%s not found", userID, weekStart.Format(time.DateOnly))
}

func (r *TimesheetRepo) GetByID(_ context.Context, id uuid.UUID) (*db.Timesheet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ts, ok := r.s.st.sheets[id]
	if !ok {
		return nil, apperr.NotFound("timesheet %s not found", id)
	}
	return r.withEntries(ts), nil
}

func (r *TimesheetRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*db.Timesheet, error) {
	return r.GetByID(ctx, id)
}

func (r *TimesheetRepo) Update(_ context.Context, ts *db.Timesheet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.st.sheets[ts.ID]
	if !ok {
		return apperr.NotFound("timesheet %s not found", ts.ID)
	}
	if !isStatus(ts.Status) {
		return apperr.Validation("timesheet %s violates timesheets_status_check", ts.ID)
	}
	stored := *ts
	stored.Entries = nil
	stored.CreatedAt = old.CreatedAt
	stored.UpdatedAt = r.s.now()
	ts.UpdatedAt = stored.UpdatedAt
	r.s.st.sheets[ts.ID] = stored
	return nil
}

func isStatus(s string) bool {
	switch s {
	case db.TimesheetStatusDraft, db.TimesheetStatusSubmitted, db.TimesheetStatusApproved, db.TimesheetStatusRejected:
		return true
	}
	return false
}

func (r *TimesheetRepo) ReplaceEntries(_ context.Context, timesheetID uuid.UUID, logIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.sheets[timesheetID]; !ok {
		return apperr.NotFound("timesheet %s not found", timesheetID)
	}
	r.s.st.entries[timesheetID] = slices.Clone(logIDs)
	return nil
}

func (r *TimesheetRepo) ListByUser(_ context.Context, userID string) ([]db.Timesheet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []db.Timesheet{}
	for _, ts := range r.s.st.sheets {
		if ts.UserID == userID {
			out = append(out, *r.withEntries(ts))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	return out, nil
}

func (r *TimesheetRepo) ListByStatus(_ context.Context, status string, userIDs []string) ([]db.Timesheet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []db.Timesheet{}
	for _, ts := range r.s.st.sheets {
		if ts.Status != status {
			continue
		}
		if userIDs != nil && !slices.Contains(userIDs, ts.UserID) {
			continue
		}
		out = append(out, *r.withEntries(ts))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.Before(out[j].WeekStart)
		}
		return strings.Compare(out[i].UserID, out[j].UserID) < 0
	})
	return out, nil
}

// withEntries copies ts and attaches its entry list. Callers hold mu.
func (r *TimesheetRepo) withEntries(ts db.Timesheet) *db.Timesheet {
	ts.Entries = slices.Clone(r.s.st.entries[ts.ID])
	return &ts
}
