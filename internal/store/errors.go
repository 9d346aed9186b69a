package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/realty-ai/internal/resilience"
)

// Postgres SQLSTATEs a repeated transaction can clear.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// retryable marks write conflicts as transient: SQLite lock contention and
// Postgres serialization failures or deadlocks. Other errors pass through.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return resilience.NewTransientError(err, 0)
		}
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return resilience.NewTransientError(err, 0)
		}
	}
	return err
}
