package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lg/nutrition-api/internal/nutrition"
)

// mapError converts pgx/pgconn errors to domain errors.
// context.DeadlineExceeded and context.Canceled are NOT mapped; they pass
// through for the caller to classify.
func mapError(err error, entity string, key any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %v: %w", entity, key, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, key, nutrition.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %v: %w", entity, key, nutrition.ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %v: %w", entity, key, nutrition.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s %v: %w: %s", entity, key, nutrition.ErrValidation, pgErr.ConstraintName)
		case "57014": // query_canceled, raised by statement_timeout
			return fmt.Errorf("%s %v: %w: %w", entity, key, context.DeadlineExceeded, err)
		}
	}

	return fmt.Errorf("%s %v: %w", entity, key, err)
}
