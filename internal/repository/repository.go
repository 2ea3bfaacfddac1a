package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"propel/internal/apperr"
	pkgdb "propel/pkg/db"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier = pkgdb.Querier

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFoundOr maps pgx.ErrNoRows to a NotFound error and leaves other errors untouched.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(msg)
	}
	return err
}
