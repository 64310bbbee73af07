package db

import (
	"errors"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation  = "23505"
	sqliteUniqueFailed = "UNIQUE constraint failed:"
)

// IsUniqueViolation reports whether err is a unique constraint failure on
// Postgres or SQLite. When constraints are given, one of them must name the
// failing key: Postgres reports the constraint name ("users_email_key") and
// SQLite the column list ("users.email").
func IsUniqueViolation(err error, constraints ...string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return len(constraints) == 0 || slices.Contains(constraints, pgErr.ConstraintName)
	}
	msg := err.Error()
	if strings.Contains(msg, sqliteUniqueFailed) {
		_, cols, _ := strings.Cut(msg, sqliteUniqueFailed)
		return len(constraints) == 0 || slices.Contains(constraints, strings.TrimSpace(cols))
	}
	if strings.Contains(msg, "duplicate key value") {
		if len(constraints) == 0 {
			return true
		}
		for _, name := range constraints {
			if strings.Contains(msg, `"`+name+`"`) {
				return true
			}
		}
	}
	return false
}

// IsNotFound reports whether err is GORM's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
