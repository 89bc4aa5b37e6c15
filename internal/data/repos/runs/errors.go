package runs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/winegraph/internal/domain"
)

var (
	// ErrConflict is a duplicate run id.
	ErrConflict = errors.New("run store conflict")
	// ErrRetryable marks a transient store failure.
	ErrRetryable = errors.New("run store retryable")
)

// MapError folds driver failures into domain.ErrNotFound, ErrConflict or
// ErrRetryable; anything else is wrapped unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrRetryable, err))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, errors.Join(ErrConflict, err))
		case "40001", "40P01", "55P03": // serialization/deadlock/lock_not_available
			return fmt.Errorf("%s: %w", op, errors.Join(ErrRetryable, err))
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint"):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrConflict, err))
	case strings.Contains(msg, "deadlock"), strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrRetryable, err))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
