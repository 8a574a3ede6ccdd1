// Package store holds the SQL access for queues and games. Every method takes
// the handle to run on: a *sqlx.DB for single-statement reads or the caller's
// *sqlx.Tx for anything that must be atomic with other writes. The stores
// never open or commit transactions themselves.
package store

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier = sqlx.ExtContext

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func newID() string {
	return uuid.NewString()
}
