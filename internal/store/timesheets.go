package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
)

// TimesheetRepo persists db.Timesheet rows and their ordered entries.
type TimesheetRepo struct {
	db *gorm.DB
}

func NewTimesheetRepo(gdb *gorm.DB) *TimesheetRepo {
	return &TimesheetRepo{db: gdb}
}

// CreateIfAbsent inserts ts unless the user already has a timesheet for that
// week, then returns whichever row won.
func (r *TimesheetRepo) CreateIfAbsent(ctx context.Context, ts *db.Timesheet) (*db.Timesheet, error) {
	err := conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "week_start"}},
			DoNothing: true,
		}).
		Create(ts).Error
	if err != nil {
		return nil, mapError(err, "timesheet", ts.ID)
	}
	return r.GetByUserWeek(ctx, ts.UserID, ts.WeekStart)
}

func (r *TimesheetRepo) GetByUserWeek(ctx context.Context, userID string, weekStart time.Time) (*db.Timesheet, error) {
	var ts db.Timesheet
	err := conn(ctx, r.db).
		Where("user_id = ? AND week_start = ?", userID, weekStart.Format("2006-01-02")).
		First(&ts).Error
	if err != nil {
		return nil, mapError(err, "timesheet", userID+"@"+weekStart.Format("2006-01-02"))
	}
	if err := r.loadEntries(ctx, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

func (r *TimesheetRepo) GetByID(ctx context.Context, id uuid.UUID) (*db.Timesheet, error) {
	return r.get(ctx, conn(ctx, r.db), id)
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *TimesheetRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*db.Timesheet, error) {
	return r.get(ctx, forUpdate(ctx, conn(ctx, r.db)), id)
}

func (r *TimesheetRepo) get(ctx context.Context, q *gorm.DB, id uuid.UUID) (*db.Timesheet, error) {
	var ts db.Timesheet
	if err := q.First(&ts, "id = ?", id).Error; err != nil {
		return nil, mapError(err, "timesheet", id)
	}
	if err := r.loadEntries(ctx, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// Update writes the scalar columns. Entries go through ReplaceEntries.
func (r *TimesheetRepo) Update(ctx context.Context, ts *db.Timesheet) error {
	err := conn(ctx, r.db).Model(ts).Select("*").Omit("created_at").Updates(ts).Error
	return mapError(err, "timesheet", ts.ID)
}

// ReplaceEntries rewrites the ordered entry list of a timesheet.
func (r *TimesheetRepo) ReplaceEntries(ctx context.Context, timesheetID uuid.UUID, logIDs []uuid.UUID) error {
	q := conn(ctx, r.db)
	if err := q.Where("timesheet_id = ?", timesheetID).Delete(&db.TimesheetEntry{}).Error; err != nil {
		return mapError(err, "timesheet entries", timesheetID)
	}
	if len(logIDs) == 0 {
		return nil
	}
	rows := make([]db.TimesheetEntry, len(logIDs))
	for i, id := range logIDs {
		rows[i] = db.TimesheetEntry{TimesheetID: timesheetID, TimeLogID: id, Position: i}
	}
	return mapError(q.Create(&rows).Error, "timesheet entries", timesheetID)
}

// ListByUser returns the user's timesheets, newest week first.
func (r *TimesheetRepo) ListByUser(ctx context.Context, userID string) ([]db.Timesheet, error) {
	var sheets []db.Timesheet
	err := conn(ctx, r.db).Where("user_id = ?", userID).Order("week_start DESC").Find(&sheets).Error
	if err != nil {
		return nil, mapError(err, "timesheets", userID)
	}
	if err := r.loadEntriesBatch(ctx, sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// ListByStatus returns timesheets in the given status ordered by week and
// owner. A nil userIDs means every user; an empty slice matches nobody.
func (r *TimesheetRepo) ListByStatus(ctx context.Context, status string, userIDs []string) ([]db.Timesheet, error) {
	if userIDs != nil && len(userIDs) == 0 {
		return []db.Timesheet{}, nil
	}

	q := sq.Select("*").From("timesheets").
		Where(sq.Eq{"status": status}).
		OrderBy("week_start", "user_id")
	if userIDs != nil {
		q = q.Where(sq.Eq{"user_id": userIDs})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build timesheet query: %w", err)
	}

	var sheets []db.Timesheet
	if err := conn(ctx, r.db).Raw(query, args...).Scan(&sheets).Error; err != nil {
		return nil, mapError(err, "timesheets", status)
	}
	if err := r.loadEntriesBatch(ctx, sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

func (r *TimesheetRepo) loadEntries(ctx context.Context, ts *db.Timesheet) error {
	var ids []uuid.UUID
	err := conn(ctx, r.db).Model(&db.TimesheetEntry{}).
		Where("timesheet_id = ?", ts.ID).
		Order("position").
		Pluck("time_log_id", &ids).Error
	if err != nil {
		return mapError(err, "timesheet entries", ts.ID)
	}
	ts.Entries = ids
	return nil
}

func (r *TimesheetRepo) loadEntriesBatch(ctx context.Context, sheets []db.Timesheet) error {
	if len(sheets) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(sheets))
	for i := range sheets {
		ids[i] = sheets[i].ID
	}

	var rows []db.TimesheetEntry
	err := conn(ctx, r.db).
		Where("timesheet_id IN ?", ids).
		Order("timesheet_id, position").
		Find(&rows).Error
	if err != nil {
		return mapError(err, "timesheet entries", len(ids))
	}

	byID := make(map[uuid.UUID][]uuid.UUID, len(sheets))
	for _, row := range rows {
		byID[row.TimesheetID] = append(byID[row.TimesheetID], row.TimeLogID)
	}
	for i := range sheets {
		sheets[i].Entries = byID[sheets[i].ID]
	}
	return nil
}
