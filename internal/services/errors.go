package services

import (
	"errors"

	"github.com/baharkarakas/paycore/internal/apperr"
	repo "github.com/baharkarakas/paycore/internal/repository"
)

// storeErr turns a repository error into an apperr kind. notFound is the
// message used when the record is missing.
func storeErr(op string, err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, repo.ErrDuplicate):
		return apperr.Conflict(op + ": already exists")
	case errors.Is(err, repo.ErrStaleStatus):
		return apperr.Conflict(op + ": status changed concurrently")
	default:
		return apperr.Internal(op, err)
	}
}
