package postgresql

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write hits a uniqueness constraint.
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition means the row was not in the status the transition
	// requires. It signals a programming error in the caller.
	ErrInvalidTransition = errors.New("invalid status transition")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
