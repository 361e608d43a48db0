package repository

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate row")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// mapInsertErr turns unique violations into ErrDuplicate and leaves other errors as they are.
func mapInsertErr(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// pick returns exec when the caller runs inside a transaction, the pool otherwise.
func pick(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
