package sqlstore

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned for lookups of rows outside the engine's user
// error taxonomy (organizations, audit rows).
var ErrNotFound = errors.New("sqlstore: not found")

// uniqueViolation is the PostgreSQL error code for a duplicate key.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
