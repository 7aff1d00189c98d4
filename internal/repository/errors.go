package repository

import (
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
)

// PostgreSQL error codes the store distinguishes.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// classify wraps a driver error and marks it as a conflict, a transient
// failure, or a plain database error.
func classify(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ierr.WithError(err).
				WithMessage(msg).
				WithHintf("A record with the same key was written concurrently (%s)", pgErr.ConstraintName).
				Mark(ierr.ErrStorageConflict)
		case serializationFailure, deadlockDetected:
			return ierr.WithError(err).
				WithMessage(msg).
				WithHint("The database is busy, please retry").
				Mark(ierr.ErrStorageTransient)
		}
		return ierr.WithError(err).
			WithMessage(msg).
			WithHint("An unexpected database error occurred").
			Mark(ierr.ErrDatabase)
	}

	var connErr *pgconn.ConnectError
	if ierr.IsContextError(err) || pgconn.Timeout(err) || errors.As(err, &connErr) || pgconn.SafeToRetry(err) {
		return ierr.WithError(err).
			WithMessage(msg).
			WithHint("The database is unavailable, please retry").
			Mark(ierr.ErrStorageTransient)
	}

	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("An unexpected database error occurred").
		Mark(ierr.ErrDatabase)
}
