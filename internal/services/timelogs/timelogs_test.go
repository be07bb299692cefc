package timelogs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/caps"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/store/memstore"
)

var (
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
	now   = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) // Thursday
	today = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store *memstore.Store
	svc   *Service
	task  uuid.UUID
	other uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	project := s.Directory.AddProject("Apollo", "pm")
	s.Directory.AddMember(project, "alice", db.MemberRoleMember)
	task := s.Directory.AddTask(project, "Design")
	other := s.Directory.AddTask(project, "Build")

	logs := s.TimeLogs()
	svc := NewService(quiet, s, logs, s.Timesheets(), s.Directory,
		caps.NewValidator(logs, 8, quiet), lock.NewLocal(), time.UTC,
		func() time.Time { return now })
	return &fixture{store: s, svc: svc, task: task, other: other}
}

func span(date time.Time, fromHour, hours float64) (time.Time, time.Time) {
	start := date.Add(time.Duration(fromHour * float64(time.Hour)))
	return start, start.Add(time.Duration(hours * float64(time.Hour)))
}

func (f *fixture) create(t *testing.T, user string, task uuid.UUID, date time.Time, fromHour, hours float64) *db.TimeLog {
	t.Helper()
	start, end := span(date, fromHour, hours)
	log, err := f.svc.Create(context.Background(), user, CreateInput{TaskID: task, Date: date, Start: start, End: end, IsManual: true})
	require.NoError(t, err)
	return log
}

func TestDeriveDuration(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	h, err := DeriveDuration(start, start.Add(4*time.Hour+30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 4.5, h)

	_, err = DeriveDuration(start, start)
	assert.ErrorIs(t, err, apperr.ErrInvalidRange)

	_, err = DeriveDuration(start, start.Add(-time.Minute))
	assert.ErrorIs(t, err, apperr.ErrInvalidRange)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	log := f.create(t, "alice", f.task, today, 9, 2.5)
	assert.Equal(t, 2.5, log.DurationHours)
	assert.Equal(t, today, log.Date)
	assert.True(t, log.IsManual)
	assert.False(t, log.IsApproved)
	assert.NotEqual(t, uuid.Nil, log.ProjectID, "project copied from task")

	t.Run("invalid range", func(t *testing.T) {
		start, _ := span(today, 10, 1)
		_, err := f.svc.Create(ctx, "alice", CreateInput{TaskID: f.task, Date: today, Start: start, End: start})
		assert.ErrorIs(t, err, apperr.ErrInvalidRange)
	})

	t.Run("future date", func(t *testing.T) {
		tomorrow := today.AddDate(0, 0, 1)
		start, end := span(tomorrow, 9, 1)
		_, err := f.svc.Create(ctx, "alice", CreateInput{TaskID: f.task, Date: tomorrow, Start: start, End: end})
		assert.ErrorIs(t, err, apperr.ErrFutureDate)
	})

	t.Run("unknown task", func(t *testing.T) {
		start, end := span(today, 9, 1)
		_, err := f.svc.Create(ctx, "alice", CreateInput{TaskID: uuid.New(), Date: today, Start: start, End: end})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("cap", func(t *testing.T) {
		f.create(t, "alice", f.other, today, 12, 5.5) // 8.0 total
		start, end := span(today, 18, 0.25)
		_, err := f.svc.Create(ctx, "alice", CreateInput{TaskID: f.task, Date: today, Start: start, End: end})
		assert.ErrorIs(t, err, apperr.ErrCapExceeded)
	})

	t.Run("date defaults to start", func(t *testing.T) {
		yesterday := today.AddDate(0, 0, -1)
		start, end := span(yesterday, 9, 1)
		log, err := f.svc.Create(ctx, "bob", CreateInput{TaskID: f.task, Start: start, End: end})
		require.NoError(t, err)
		assert.Equal(t, yesterday, log.Date)
	})
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log := f.create(t, "alice", f.task, today, 9, 2)
	f.create(t, "alice", f.other, today, 12, 5)

	t.Run("rederives duration", func(t *testing.T) {
		_, end := span(today, 9, 3)
		desc := "longer"
		got, err := f.svc.Update(ctx, "alice", log.ID, Patch{End: &end, Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, 3.0, got.DurationHours)
		assert.Equal(t, "longer", got.Description)
	})

	t.Run("excludes itself from the cap", func(t *testing.T) {
		_, end := span(today, 9, 3.5)
		_, err := f.svc.Update(ctx, "alice", log.ID, Patch{End: &end})
		require.ErrorIs(t, err, apperr.ErrCapExceeded)

		stored, err := f.store.TimeLogs().GetByID(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, 3.0, stored.DurationHours, "failed update leaves the log unchanged")
	})

	t.Run("not owner", func(t *testing.T) {
		desc := "x"
		_, err := f.svc.Update(ctx, "mallory", log.ID, Patch{Description: &desc})
		assert.ErrorIs(t, err, apperr.ErrNotOwner)
	})

	t.Run("not found", func(t *testing.T) {
		desc := "x"
		_, err := f.svc.Update(ctx, "alice", uuid.New(), Patch{Description: &desc})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("invalid range", func(t *testing.T) {
		start, _ := span(today, 20, 0)
		_, err := f.svc.Update(ctx, "alice", log.ID, Patch{Start: &start})
		assert.ErrorIs(t, err, apperr.ErrInvalidRange)
	})

	t.Run("moved into the future", func(t *testing.T) {
		tomorrow := today.AddDate(0, 0, 1)
		_, err := f.svc.Update(ctx, "alice", log.ID, Patch{Date: &tomorrow})
		assert.ErrorIs(t, err, apperr.ErrFutureDate)
	})
}

func TestApprovedLogIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log := f.create(t, "alice", f.task, today, 9, 2)
	require.NoError(t, f.store.TimeLogs().MarkApproved(ctx, []uuid.UUID{log.ID}, "pm", now))

	desc := "edit"
	_, err := f.svc.Update(ctx, "alice", log.ID, Patch{Description: &desc})
	assert.ErrorIs(t, err, apperr.ErrImmutable)

	err = f.svc.Delete(ctx, "alice", log.ID)
	assert.ErrorIs(t, err, apperr.ErrImmutable)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log := f.create(t, "alice", f.task, today, 9, 2)

	assert.ErrorIs(t, f.svc.Delete(ctx, "bob", log.ID), apperr.ErrNotOwner)
	require.NoError(t, f.svc.Delete(ctx, "alice", log.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, "alice", log.ID), apperr.ErrNotFound)
}

func TestWeekLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log := f.create(t, "alice", f.task, today, 9, 2)

	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	ts, err := f.store.Timesheets().CreateIfAbsent(ctx, &db.Timesheet{
		ID: uuid.New(), UserID: "alice", WeekStart: monday, WeekEnd: monday.AddDate(0, 0, 6),
		Status: db.TimesheetStatusSubmitted,
	})
	require.NoError(t, err)
	require.Equal(t, db.TimesheetStatusSubmitted, ts.Status)

	start, end := span(today, 14, 1)
	_, err = f.svc.Create(ctx, "alice", CreateInput{TaskID: f.task, Date: today, Start: start, End: end})
	assert.ErrorIs(t, err, apperr.ErrNotEditable)

	assert.ErrorIs(t, f.svc.Delete(ctx, "alice", log.ID), apperr.ErrNotEditable)

	// The previous week has no timesheet and stays open.
	lastWeek := today.AddDate(0, 0, -7)
	f.create(t, "alice", f.task, lastWeek, 9, 1)
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", f.task, today.AddDate(0, 0, -2), 9, 1)
	b := f.create(t, "alice", f.other, today, 9, 2)
	c := f.create(t, "bob", f.task, today, 9, 3)
	owner := auth.Identity{UserID: "pm", Role: auth.RoleProjectManager}

	got, err := f.svc.ListByUserRange(ctx, "alice", today.AddDate(0, 0, -3), today.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	_, err = f.svc.ListByUserRange(ctx, "alice", today, today.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, apperr.ErrInvalidRange)

	got, err = f.svc.ListByTask(ctx, owner, f.task)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, c.ID}, ids(got))

	got, err = f.svc.ListByProject(ctx, owner, b.ProjectID)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	one, err := f.svc.Get(ctx, "alice", b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, one.ID)
	_, err = f.svc.Get(ctx, "bob", b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotOwner)
}

func TestProjectQueries_RequireSupervision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log := f.create(t, "alice", f.task, today, 9, 1)
	project := log.ProjectID

	denied := []auth.Identity{
		{UserID: "outsider", Role: auth.RoleProjectManager},
		{UserID: "alice", Role: auth.RoleMember},
	}
	for _, caller := range denied {
		_, err := f.svc.ListByTask(ctx, caller, f.task)
		assert.ErrorIs(t, err, apperr.ErrForbidden, caller.UserID)
		_, err = f.svc.ListByProject(ctx, caller, project)
		assert.ErrorIs(t, err, apperr.ErrForbidden, caller.UserID)
	}

	_, err := f.svc.ListByTask(ctx, denied[0], uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// A lead added to the project gains access.
	f.store.Directory.AddMember(project, "outsider", db.MemberRoleLead)
	got, err := f.svc.ListByProject(ctx, denied[0], project)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{log.ID}, ids(got))

	admin := auth.Identity{UserID: "root", Role: auth.RoleSuperAdmin}
	got, err = f.svc.ListByTask(ctx, admin, f.task)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{log.ID}, ids(got))
}

func ids(logs []db.TimeLog) []uuid.UUID {
	out := make([]uuid.UUID, len(logs))
	for i, l := range logs {
		out[i] = l.ID
	}
	return out
}
