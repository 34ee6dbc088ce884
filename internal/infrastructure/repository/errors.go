package repository

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

// PostgreSQL error codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsDuplicateKeyViolation checks if the error is a unique constraint violation
func IsDuplicateKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsForeignKeyViolation checks if the error is a foreign key constraint violation
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// IsNotFound checks if the error indicates a record was not found
func IsNotFound(err error) bool {
	return stderrors.Is(err, pgx.ErrNoRows)
}

// wrapError maps database errors onto application errors
func wrapError(err error, resource, operation string) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return errors.NewNotFoundError(resource)
	case IsDuplicateKeyViolation(err):
		return errors.NewConflictError(resource + " already exists").WithCause(err)
	case IsForeignKeyViolation(err):
		return errors.NewValidationError("UNKNOWN_REFERENCE", resource+" references a missing row").WithCause(err)
	default:
		return errors.NewInternalError(operation + " " + resource).WithCause(err)
	}
}
