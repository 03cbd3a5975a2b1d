package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/auth"
)

const (
	msgInvalidJSON   = "Invalid JSON in request body"
	msgIDRequired    = "ID is required"
	msgSlotBooked    = "This time slot is already booked."
	msgScheduleBusy  = "This schedule is being updated right now. Please retry."
	msgNotFound      = "Appointment not found"
	msgUnauthorized  = "Unauthorized"
	msgNoProfile     = "Forbidden: Profile not found"
	msgInternalError = "An internal error occurred. Please try again later."
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError is the single place where domain errors become HTTP
// statuses. Unexpected errors are logged in full and answered generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		validation *appointment.ValidationError
		forbidden  *appointment.ForbiddenError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &forbidden):
		writeError(w, http.StatusForbidden, forbidden.Error())
	case errors.Is(err, appointment.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, msgSlotBooked)
	case errors.Is(err, appointment.ErrScheduleBusy):
		writeError(w, http.StatusConflict, msgScheduleBusy)
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, auth.ErrProfileNotFound):
		writeError(w, http.StatusForbidden, msgNoProfile)
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	default:
		logger.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Time("at", timeNow()),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}
