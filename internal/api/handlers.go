package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/auth"
)

type AppointmentService interface {
	Create(ctx context.Context, caller auth.Caller, req appointment.CreateRequest) (*appointment.AppointmentDetail, error)
	List(ctx context.Context, caller auth.Caller, employeeFilter string) (*appointment.ListResult, error)
	UpdateStatus(ctx context.Context, caller auth.Caller, req appointment.UpdateStatusRequest) (*appointment.AppointmentDetail, error)
	Delete(ctx context.Context, caller auth.Caller, id string) (*appointment.DeleteResult, error)
	ConsultationTypes(ctx context.Context) ([]appointment.Label, error)
	Modalities(ctx context.Context) ([]appointment.Label, error)
}

type appointmentHandler struct {
	svc    AppointmentService
	logger *zap.Logger
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// caller is set by AuthMiddleware; a missing value means the route was
// mounted without it.
func (h *appointmentHandler) caller(w http.ResponseWriter, r *http.Request) (auth.Caller, bool) {
	c, ok := CallerFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, auth.ErrUnauthorized)
	}
	return c, ok
}

func (h *appointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	created, err := h.svc.Create(r.Context(), caller, req.toDomain())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(*created))
}

func (h *appointmentHandler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	res, err := h.svc.List(r.Context(), caller, r.URL.Query().Get("employeeId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := ListAppointmentsResponse{
		Appointments: make([]AppointmentResponse, 0, len(res.Appointments)),
		IsStaff:      res.IsStaff,
	}
	for _, d := range res.Appointments {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *appointmentHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), caller, appointment.UpdateStatusRequest{
		ID:         req.ID,
		StatusName: req.StatusName,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*updated))
}

// remove takes the id from the query string, falling back to the JSON body.
func (h *appointmentHandler) remove(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		var req DeleteAppointmentRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		id = req.ID
	}
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, msgIDRequired)
		return
	}

	res, err := h.svc.Delete(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: res.Message})
}

func (h *appointmentHandler) labels(load func(context.Context) ([]appointment.Label, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels, err := load(r.Context())
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		resp := make([]LabelResponse, 0, len(labels))
		for _, l := range labels {
			resp = append(resp, LabelResponse{ID: l.ID, Name: l.Name})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
