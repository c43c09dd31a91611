package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation from Postgres (pgx or lib/pq) or SQLite. When
// constraintName is provided, the helper also requires the constraint name to be
// referenced by the error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	matched := false
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		matched = pgErr.Code == uniqueViolationCode
		if matched && constraintName != "" {
			return pgErr.ConstraintName == constraintName || strings.Contains(pgErr.Message, constraintName)
		}
	case errors.As(err, &pqErr):
		matched = string(pqErr.Code) == uniqueViolationCode
		if matched && constraintName != "" {
			return pqErr.Constraint == constraintName || strings.Contains(pqErr.Message, constraintName)
		}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		matched = true
	}

	msg := err.Error()
	if !matched {
		matched = strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
	}
	if !matched {
		return false
	}
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return true
}
