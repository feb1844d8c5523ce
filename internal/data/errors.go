package data

import (
	"github.com/google/uuid"

	apperrors "github.com/target/studentdash/internal/errors"
)

// validID reports whether id can be bound to a UUID column. Malformed ids can
// never match a row, so callers answer NotFound without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func studentNotFound(id string) error {
	return apperrors.NotFoundf("student %s not found", id)
}

func accountNotFound() error {
	return apperrors.NotFound("account not found")
}
