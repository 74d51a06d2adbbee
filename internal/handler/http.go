package handler

import (
	"errors"
	"net/http"

	courier_errors "courier/pkg/errors"

	"github.com/google/uuid"
)

// statusFor maps service sentinel errors onto HTTP statuses. Anything
// unrecognised is a 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, courier_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, courier_errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, courier_errors.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, courier_errors.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, courier_errors.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, courier_errors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
