package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/onescheduler/dashboard/internal/api/response"
	"github.com/onescheduler/dashboard/internal/api/validation"
	"github.com/onescheduler/dashboard/internal/setup"
)

// writeSetupError maps a setup flow failure to its HTTP response.
func writeSetupError(w http.ResponseWriter, err error, requestID string) {
	var se *setup.Error
	if !errors.As(err, &se) {
		se = setup.Normalize(err)
	}

	switch se.Kind {
	case setup.KindAuth:
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", se.Message, requestID)
	case setup.KindValidation:
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed",
			[]validation.FieldError{{Field: "name", Message: se.Message}}, requestID)
	case setup.KindNameConflict:
		response.Err(w, http.StatusConflict, "NAME_TAKEN", se.Message, requestID)
	case setup.KindInvalidInviteCode:
		response.Err(w, http.StatusNotFound, "INVALID_CODE", se.Message, requestID)
	case setup.KindAlreadyMember:
		response.Err(w, http.StatusConflict, "ALREADY_MEMBER", se.Message, requestID)
	case setup.KindInFlight:
		response.Err(w, http.StatusConflict, "REQUEST_IN_FLIGHT", se.Message, requestID)
	case setup.KindSuperseded:
		response.Err(w, http.StatusConflict, "SUPERSEDED", se.Message, requestID)
	default:
		slog.Error("setup request failed", "kind", se.Kind, "error", se.Err, "requestId", requestID)
		response.ErrRetryable(w, http.StatusBadGateway, "SERVER_ERROR", se.Message, requestID)
	}
}
