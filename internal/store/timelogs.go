package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
)

// TimeLogRepo persists db.TimeLog rows.
type TimeLogRepo struct {
	db *gorm.DB
}

func NewTimeLogRepo(gdb *gorm.DB) *TimeLogRepo {
	return &TimeLogRepo{db: gdb}
}

func (r *TimeLogRepo) Create(ctx context.Context, log *db.TimeLog) error {
	return mapError(conn(ctx, r.db).Create(log).Error, "time log", log.ID)
}

// Update writes every column of the log.
func (r *TimeLogRepo) Update(ctx context.Context, log *db.TimeLog) error {
	return mapError(conn(ctx, r.db).Save(log).Error, "time log", log.ID)
}

func (r *TimeLogRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := conn(ctx, r.db).Delete(&db.TimeLog{}, "id = ?", id)
	if res.Error != nil {
		return mapError(res.Error, "time log", id)
	}
	if res.RowsAffected == 0 {
		return mapError(gorm.ErrRecordNotFound, "time log", id)
	}
	return nil
}

func (r *TimeLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*db.TimeLog, error) {
	var log db.TimeLog
	q := forUpdate(ctx, conn(ctx, r.db))
	if err := q.First(&log, "id = ?", id).Error; err != nil {
		return nil, mapError(err, "time log", id)
	}
	return &log, nil
}

// Find returns the logs matching filter ordered by date, start time and id.
func (r *TimeLogRepo) Find(ctx context.Context, filter db.TimeLogFilter) ([]db.TimeLog, error) {
	query, args, err := timeLogQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build time log query: %w", err)
	}

	var logs []db.TimeLog
	if err := conn(ctx, r.db).Raw(query, args...).Scan(&logs).Error; err != nil {
		return nil, mapError(err, "time logs", filter.UserID)
	}
	return logs, nil
}

func timeLogQuery(filter db.TimeLogFilter) sq.SelectBuilder {
	q := sq.Select("*").From("time_logs").OrderBy("date", "start_time", "id")
	if filter.UserID != "" {
		q = q.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.TaskID != nil {
		q = q.Where(sq.Eq{"task_id": *filter.TaskID})
	}
	if filter.ProjectID != nil {
		q = q.Where(sq.Eq{"project_id": *filter.ProjectID})
	}
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"date": filter.From.Format("2006-01-02")})
	}
	if filter.To != nil {
		q = q.Where(sq.LtOrEq{"date": filter.To.Format("2006-01-02")})
	}
	if filter.IDs != nil {
		q = q.Where(sq.Eq{"id": filter.IDs})
	}
	return q
}

// MarkApproved freezes the given logs.
func (r *TimeLogRepo) MarkApproved(ctx context.Context, ids []uuid.UUID, approverID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := conn(ctx, r.db).Model(&db.TimeLog{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"is_approved": true,
			"approved_by": approverID,
			"approved_at": at,
			"updated_at":  at,
		}).Error
	return mapError(err, "time logs", len(ids))
}
