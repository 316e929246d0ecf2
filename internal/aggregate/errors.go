package aggregate

import (
	"context"
	"errors"
	"fmt"

	"lg/nutrition-api/internal/nutrition"
)

// Classify maps a storage failure onto the transient error taxonomy. Domain
// errors pass through unchanged; a failure is never turned into zero totals.
func Classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, nutrition.ErrStorageTimeout),
		errors.Is(err, nutrition.ErrStorageUnavailable),
		errors.Is(err, nutrition.ErrNotFound),
		errors.Is(err, nutrition.ErrConflict),
		errors.Is(err, nutrition.ErrInvalidDate),
		errors.Is(err, nutrition.ErrRangeTooLarge),
		errors.Is(err, nutrition.ErrIncompleteProfile),
		errors.Is(err, nutrition.ErrValidation):
		return err
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", nutrition.ErrStorageTimeout, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", nutrition.ErrStorageUnavailable, op, err)
	}
}
