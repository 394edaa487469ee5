package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the few places where Postgres and SQLite differ. Queries
// themselves are written once: both accept $N placeholders, RETURNING,
// ON CONFLICT and NULLS LAST.
type Dialect struct {
	Name string
	// replacer expands the type tokens used by the schema template.
	replacer *strings.Replacer
	// uniqueViolation returns the violated constraint or column text.
	uniqueViolation func(err error) (string, bool)
}

var Postgres = Dialect{
	Name: "postgres",
	replacer: strings.NewReplacer(
		"{pk}", "BIGSERIAL PRIMARY KEY",
		"{ref}", "BIGINT",
		"{ts}", "TIMESTAMPTZ",
	),
	uniqueViolation: func(err error) (string, bool) {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pqErr.Constraint, true
		}
		return "", false
	},
}

var SQLite = Dialect{
	Name: "sqlite",
	replacer: strings.NewReplacer(
		"{pk}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{ref}", "INTEGER",
		"{ts}", "TIMESTAMP",
	),
	uniqueViolation: func(err error) (string, bool) {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return sqliteErr.Error(), true
		}
		return "", false
	},
}

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, errors.New("unknown dialect " + driver)
	}
}
