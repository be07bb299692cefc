package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
)

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func newLog(user string, date time.Time, hours float64) *db.TimeLog {
	start := date.Add(9 * time.Hour)
	return &db.TimeLog{
		ID:            uuid.New(),
		UserID:        user,
		TaskID:        uuid.New(),
		ProjectID:     uuid.New(),
		Date:          date,
		StartTime:     start,
		EndTime:       start.Add(time.Duration(hours * float64(time.Hour))),
		DurationHours: hours,
	}
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	logs := s.TimeLogs()

	kept := newLog("u1", day("2026-10-12"), 1)
	require.NoError(t, logs.Create(ctx, kept))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, logs.Create(ctx, newLog("u1", day("2026-10-13"), 2)))
		require.NoError(t, logs.Delete(ctx, kept.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := logs.Find(ctx, db.TimeLogFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, kept.ID, all[0].ID)
}

func TestRunInTx_NestedJoinsOuter(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return s.TimeLogs().Create(ctx, newLog("u1", day("2026-10-12"), 1))
		})
	})
	require.NoError(t, err)
}

func TestTimeLogRepo_FindFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	logs := s.TimeLogs()

	a := newLog("u1", day("2026-10-12"), 1)
	b := newLog("u1", day("2026-10-14"), 2)
	c := newLog("u2", day("2026-10-14"), 3)
	for _, l := range []*db.TimeLog{b, a, c} {
		require.NoError(t, logs.Create(ctx, l))
	}

	from, to := day("2026-10-12"), day("2026-10-13")
	got, err := logs.Find(ctx, db.TimeLogFilter{UserID: "u1", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	got, err = logs.Find(ctx, db.TimeLogFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID, "ordered by date")

	got, err = logs.Find(ctx, db.TimeLogFilter{IDs: []uuid.UUID{}})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = logs.Find(ctx, db.TimeLogFilter{TaskID: &c.TaskID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
}

func TestTimeLogRepo_RejectsInvalidSpan(t *testing.T) {
	l := newLog("u1", day("2026-10-12"), 1)
	l.EndTime = l.StartTime
	err := New().TimeLogs().Create(context.Background(), l)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTimerRepo_OneActivePerUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	timers := s.Timers()

	require.NoError(t, timers.Create(ctx, &db.TimerSession{ID: uuid.New(), UserID: "u1", IsActive: true}))
	err := timers.Create(ctx, &db.TimerSession{ID: uuid.New(), UserID: "u1", IsActive: true})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, timers.Create(ctx, &db.TimerSession{ID: uuid.New(), UserID: "u2", IsActive: true}))
	assert.Equal(t, 1, timers.CountActive("u1"))
}

func TestTimesheetRepo_CreateIfAbsentKeepsFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	sheets := s.Timesheets()

	first, err := sheets.CreateIfAbsent(ctx, &db.Timesheet{ID: uuid.New(), UserID: "u1", WeekStart: day("2026-10-12"), Status: db.TimesheetStatusDraft})
	require.NoError(t, err)
	second, err := sheets.CreateIfAbsent(ctx, &db.Timesheet{ID: uuid.New(), UserID: "u1", WeekStart: day("2026-10-12"), Status: db.TimesheetStatusDraft})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	require.NoError(t, sheets.ReplaceEntries(ctx, first.ID, ids))
	got, err := sheets.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ids, got.Entries)

	list, err := sheets.ListByStatus(ctx, db.TimesheetStatusDraft, []string{})
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = sheets.ListByStatus(ctx, db.TimesheetStatusDraft, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDirectory_Supervision(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()
	d.AddUser("root", auth.RoleSuperAdmin)
	p := d.AddProject("Apollo", "owner")
	d.AddMember(p, "alice", db.MemberRoleMember)
	d.AddMember(p, "lead", db.MemberRoleLead)
	other := d.AddProject("Gemini", "someone")
	d.AddMember(other, "bob", db.MemberRoleMember)

	users, err := d.SupervisedUsers(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "lead"}, users)

	users, err = d.SupervisedUsers(ctx, "lead")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "lead"}, users)

	users, err = d.SupervisedUsers(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, users)

	sup, err := d.ProjectSupervisors(ctx, []uuid.UUID{p, p})
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "lead"}, sup)

	admins, err := d.SuperAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, admins)

	_, err = d.GetTask(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
