package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
)

// TimerRepo persists db.TimerSession rows. The partial unique index on
// (user_id) WHERE is_active turns a second concurrent start into a Conflict.
type TimerRepo struct {
	db *gorm.DB
}

func NewTimerRepo(gdb *gorm.DB) *TimerRepo {
	return &TimerRepo{db: gdb}
}

func (r *TimerRepo) Create(ctx context.Context, s *db.TimerSession) error {
	return mapError(conn(ctx, r.db).Create(s).Error, "active timer for user", s.UserID)
}

// GetActive returns the running session of the user or apperr.ErrNotFound.
func (r *TimerRepo) GetActive(ctx context.Context, userID string) (*db.TimerSession, error) {
	return r.active(ctx, conn(ctx, r.db), userID)
}

// GetActiveForUpdate is GetActive with a row lock when called inside a transaction.
func (r *TimerRepo) GetActiveForUpdate(ctx context.Context, userID string) (*db.TimerSession, error) {
	return r.active(ctx, forUpdate(ctx, conn(ctx, r.db)), userID)
}

func (r *TimerRepo) active(_ context.Context, q *gorm.DB, userID string) (*db.TimerSession, error) {
	var s db.TimerSession
	if err := q.Where("user_id = ? AND is_active", userID).First(&s).Error; err != nil {
		return nil, mapError(err, "active timer for user", userID)
	}
	return &s, nil
}

func (r *TimerRepo) Update(ctx context.Context, s *db.TimerSession) error {
	err := conn(ctx, r.db).Model(s).Select("*").Omit("created_at").Updates(s).Error
	return mapError(err, "timer session", s.ID)
}

func (r *TimerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := conn(ctx, r.db).Delete(&db.TimerSession{}, "id = ?", id)
	if res.Error != nil {
		return mapError(res.Error, "timer session", id)
	}
	if res.RowsAffected == 0 {
		return mapError(gorm.ErrRecordNotFound, "timer session", id)
	}
	return nil
}
