package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vetdesk/clinic-scheduling/internal/appointment"
	"github.com/vetdesk/clinic-scheduling/internal/directory"
	redisclient "github.com/vetdesk/clinic-scheduling/internal/redis"
	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps domain sentinels onto the HTTP taxonomy: missing
// entities 404, relationship/role failures 403, rule violations 400,
// lock contention and CAS misses 409.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrHospitalNotFound):
		writeError(w, http.StatusNotFound, "hospital_not_found", err.Error())
	case errors.Is(err, directory.ErrAnimalNotFound):
		writeError(w, http.StatusNotFound, "animal_not_found", err.Error())
	case errors.Is(err, directory.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template_not_found", err.Error())
	case errors.Is(err, schedule.ErrClosureNotFound):
		writeError(w, http.StatusNotFound, "closure_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotGuardian):
		writeError(w, http.StatusForbidden, "not_guardian", err.Error())
	case errors.Is(err, appointment.ErrRoleForbidden):
		writeError(w, http.StatusForbidden, "role_forbidden", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusBadRequest, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrCancelReasonRequired):
		writeError(w, http.StatusBadRequest, "cancel_reason_required", err.Error())
	case errors.Is(err, appointment.ErrAppointmentImmutable):
		writeError(w, http.StatusBadRequest, "appointment_immutable", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, appointment.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, schedule.ErrInvalidTemplate):
		writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
	case errors.Is(err, appointment.ErrSlotContended),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrStatusChanged):
		writeError(w, http.StatusConflict, "status_changed", err.Error())
	case errors.Is(err, schedule.ErrTemplateExists):
		writeError(w, http.StatusConflict, "template_exists", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
