package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetdesk/clinic-scheduling/internal/appointment"
	"github.com/vetdesk/clinic-scheduling/internal/directory"
	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

// Handlers carries the service and collaborator dependencies shared by
// all endpoints.
type Handlers struct {
	svc     *appointment.Service
	store   schedule.Store
	clinics directory.ClinicDirectory
}

func NewHandlers(svc *appointment.Service, store schedule.Store, clinics directory.ClinicDirectory) *Handlers {
	return &Handlers{svc: svc, store: store, clinics: clinics}
}

// actor resolves the acting user from the X-User-ID header set by the
// authentication gateway in front of this service.
func (h *Handlers) actor(r *http.Request) (uuid.UUID, directory.Role, error) {
	raw := r.Header.Get("X-User-ID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", appointment.ErrRoleForbidden
	}
	role, err := h.clinics.UserRole(r.Context(), id)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, role, nil
}

func parseDate(s string) (time.Time, bool) {
	d, err := time.Parse(dateLayout, s)
	return d, err == nil
}

func (h *Handlers) getAvailableSlots(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := uuid.Parse(chi.URLParam(r, "hospitalID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospitalID must be a valid UUID")
		return
	}

	date, ok := parseDate(r.URL.Query().Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	day, err := h.svc.GetAvailableSlots(r.Context(), hospitalID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAvailabilityResponse(day))
}

func (h *Handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	hospitalID, err := uuid.Parse(req.HospitalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospital_id must be a valid UUID")
		return
	}
	animalID, err := uuid.Parse(req.AnimalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_animal_id", "animal_id must be a valid UUID")
		return
	}
	guardianID, err := uuid.Parse(req.GuardianID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_guardian_id", "guardian_id must be a valid UUID")
		return
	}

	date, ok := parseDate(req.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	start, err := schedule.ParseMinuteOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:mm")
		return
	}

	create := appointment.CreateRequest{
		HospitalID:      hospitalID,
		AnimalID:        animalID,
		GuardianID:      guardianID,
		Date:            date,
		Start:           start,
		DurationMinutes: req.DurationMinutes,
		Type:            appointment.Type(req.Type),
		Reason:          req.Reason,
		Symptoms:        req.Symptoms,
		Notes:           req.Notes,
	}
	if req.VetID != nil {
		vetID, err := uuid.Parse(*req.VetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_vet_id", "vet_id must be a valid UUID")
			return
		}
		create.VetID = &vetID
	}

	appt, err := h.svc.CreateAppointment(r.Context(), create)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("guardian_id"); raw != "" {
		guardianID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_guardian_id", "guardian_id must be a valid UUID")
			return
		}
		limit := intQuery(q.Get("limit"))
		offset := intQuery(q.Get("offset"))

		appts, err := h.svc.ListByGuardian(r.Context(), guardianID, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentList(appts))
		return
	}

	hospitalID, err := uuid.Parse(q.Get("hospital_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", "guardian_id or hospital_id is required")
		return
	}
	date, ok := parseDate(q.Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	appts, err := h.svc.ListByHospitalDate(r.Context(), hospitalID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(appts))
}

func toAppointmentList(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

func intQuery(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (h *Handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	_, role, err := h.actor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	patch := appointment.UpdatePatch{
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		Symptoms:        req.Symptoms,
		Notes:           req.Notes,
	}
	if req.Date != nil {
		date, ok := parseDate(*req.Date)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		patch.Date = &date
	}
	if req.StartTime != nil {
		start, err := schedule.ParseMinuteOfDay(*req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:mm")
			return
		}
		patch.Start = &start
	}
	if req.VetID != nil {
		vetID, err := uuid.Parse(*req.VetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_vet_id", "vet_id must be a valid UUID")
			return
		}
		patch.VetID = &vetID
	}
	if req.Type != nil {
		t := appointment.Type(*req.Type)
		patch.Type = &t
	}

	appt, err := h.svc.UpdateAppointment(r.Context(), id, patch, role)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	actorID, role, err := h.actor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.svc.UpdateStatus(r.Context(), id, appointment.Status(req.Status), req.CancelReason, actorID, role)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	_, role, err := h.actor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.svc.DeleteAppointment(r.Context(), id, role); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
