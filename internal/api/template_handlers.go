package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetdesk/clinic-scheduling/internal/appointment"
	"github.com/vetdesk/clinic-scheduling/internal/directory"
	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

// requireAdmin resolves the actor and rejects non-admin roles. Template
// and closure management is a clinic-admin surface.
func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	_, role, err := h.actor(r)
	if err != nil {
		writeDomainError(w, err)
		return false
	}
	if role != directory.RoleAdmin {
		writeDomainError(w, appointment.ErrRoleForbidden)
		return false
	}
	return true
}

func hospitalParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "hospitalID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospitalID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) templateFromRequest(w http.ResponseWriter, r *http.Request, hospitalID uuid.UUID) (*schedule.TimeTemplate, bool) {
	var req TimeTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return nil, false
	}

	start, err := schedule.ParseMinuteOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:mm")
		return nil, false
	}
	end, err := schedule.ParseMinuteOfDay(req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:mm")
		return nil, false
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	return &schedule.TimeTemplate{
		HospitalID:          hospitalID,
		DayOfWeek:           time.Weekday(req.DayOfWeek),
		StartMinute:         start,
		EndMinute:           end,
		SlotDurationMinutes: req.SlotDurationMinutes,
		MaxConcurrent:       req.MaxConcurrent,
		IsActive:            active,
	}, true
}

func (h *Handlers) createTemplate(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok || !h.requireAdmin(w, r) {
		return
	}
	if err := h.clinics.HospitalExists(r.Context(), hospitalID); err != nil {
		writeDomainError(w, err)
		return
	}

	tmpl, ok := h.templateFromRequest(w, r, hospitalID)
	if !ok {
		return
	}

	created, err := h.store.CreateTemplate(r.Context(), *tmpl)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTemplateResponse(created))
}

func (h *Handlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok || !h.requireAdmin(w, r) {
		return
	}

	templates, err := h.store.ListTemplates(r.Context(), hospitalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]TimeTemplateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, toTemplateResponse(&templates[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok || !h.requireAdmin(w, r) {
		return
	}
	templateID, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_template_id", "templateID must be a valid UUID")
		return
	}

	tmpl, ok := h.templateFromRequest(w, r, hospitalID)
	if !ok {
		return
	}
	tmpl.ID = templateID

	updated, err := h.store.UpdateTemplate(r.Context(), *tmpl)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTemplateResponse(updated))
}

func (h *Handlers) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok || !h.requireAdmin(w, r) {
		return
	}
	templateID, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_template_id", "templateID must be a valid UUID")
		return
	}

	if err := h.store.DeleteTemplate(r.Context(), hospitalID, templateID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) createClosure(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok || !h.requireAdmin(w, r) {
		return
	}
	if err := h.clinics.HospitalExists(r.Context(), hospitalID); err != nil {
		writeDomainError(w, err)
		return
	}

	var req ClosureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	date, ok := parseDate(req.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	created, err := h.store.CreateClosure(r.Context(), schedule.Closure{
		HospitalID:  hospitalID,
		Date:        date,
		Reason:      req.Reason,
		IsRecurring: req.IsRecurring,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClosureResponse(created))
}

func (h *Handlers) listClosures(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok || !h.requireAdmin(w, r) {
		return
	}

	closures, err := h.store.ListClosures(r.Context(), hospitalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]ClosureResponse, 0, len(closures))
	for i := range closures {
		out = append(out, toClosureResponse(&closures[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteClosure(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok || !h.requireAdmin(w, r) {
		return
	}
	closureID, err := uuid.Parse(chi.URLParam(r, "closureID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_closure_id", "closureID must be a valid UUID")
		return
	}

	if err := h.store.DeleteClosure(r.Context(), hospitalID, closureID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
