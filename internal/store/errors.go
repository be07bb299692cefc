package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
)

// mapError converts gorm and pgconn errors into apperr kinds.
// Context errors pass through untouched.
func mapError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %v: %w", entity, id, err)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %v not found", entity, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apperr.Conflict("%s %v already exists (%s)", entity, id, pgErr.ConstraintName)
		case "23514": // check_violation
			return apperr.Validation("%s %v violates %s", entity, id, pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%s %v: %w", entity, id, err)
}
