// Package repository implements all database access for the ticketing
// engine. It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateOrder is returned when an order insert loses the race against
// a concurrent delivery of the same payment reference. Callers must treat it
// as "already processed", never as a failure.
var ErrDuplicateOrder = errors.New("order already exists for payment reference")

// ErrDuplicateToken is returned when a generated ticket token collides with
// an existing one. Callers regenerate and retry the single insert.
var ErrDuplicateToken = errors.New("ticket token already exists")

// uniqueViolation is the SQLSTATE PostgreSQL raises when an insert breaks a
// unique constraint.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
