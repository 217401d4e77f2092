package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/clinic-scheduling/internal/appointment"
	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

type CreateAppointmentRequest struct {
	HospitalID      string  `json:"hospital_id"`
	AnimalID        string  `json:"animal_id"`
	GuardianID      string  `json:"guardian_id"`
	VetID           *string `json:"vet_id,omitempty"`
	Date            string  `json:"date"`
	StartTime       string  `json:"start_time"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Type            string  `json:"type,omitempty"`
	Reason          *string `json:"reason,omitempty"`
	Symptoms        *string `json:"symptoms,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	Date            *string `json:"date,omitempty"`
	StartTime       *string `json:"start_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	VetID           *string `json:"vet_id,omitempty"`
	Type            *string `json:"type,omitempty"`
	Reason          *string `json:"reason,omitempty"`
	Symptoms        *string `json:"symptoms,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status       string  `json:"status"`
	CancelReason *string `json:"cancel_reason,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	HospitalID      uuid.UUID  `json:"hospital_id"`
	AnimalID        uuid.UUID  `json:"animal_id"`
	GuardianID      uuid.UUID  `json:"guardian_id"`
	VetID           *uuid.UUID `json:"vet_id,omitempty"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Reason          *string    `json:"reason,omitempty"`
	Symptoms        *string    `json:"symptoms,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CheckedInAt     *time.Time `json:"checked_in_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		HospitalID:      a.HospitalID,
		AnimalID:        a.AnimalID,
		GuardianID:      a.GuardianID,
		VetID:           a.VetID,
		Date:            a.Date.Format(dateLayout),
		StartTime:       a.StartMinute.String(),
		EndTime:         a.EndMinute.String(),
		DurationMinutes: a.DurationMinutes,
		Type:            string(a.Type),
		Status:          string(a.Status),
		Reason:          a.Reason,
		Symptoms:        a.Symptoms,
		Notes:           a.Notes,
		CancelReason:    a.CancelReason,
		CreatedAt:       a.CreatedAt,
		CheckedInAt:     a.CheckedInAt,
		CompletedAt:     a.CompletedAt,
		CancelledAt:     a.CancelledAt,
	}
}

type SlotResponse struct {
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Available      bool   `json:"available"`
	RemainingSlots int    `json:"remaining_slots"`
}

type AvailabilityResponse struct {
	Date      string         `json:"date"`
	IsHoliday bool           `json:"is_holiday"`
	Slots     []SlotResponse `json:"slots"`
}

func toAvailabilityResponse(day *appointment.DayAvailability) AvailabilityResponse {
	resp := AvailabilityResponse{
		Date:      day.Date.Format(dateLayout),
		IsHoliday: day.IsHoliday,
		Slots:     make([]SlotResponse, 0, len(day.Slots)),
	}
	for _, s := range day.Slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			StartTime:      s.Start.String(),
			EndTime:        s.End.String(),
			Available:      s.Available,
			RemainingSlots: s.Remaining,
		})
	}
	return resp
}

type TimeTemplateRequest struct {
	DayOfWeek           int    `json:"day_of_week"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	MaxConcurrent       int    `json:"max_concurrent"`
	IsActive            *bool  `json:"is_active,omitempty"`
}

type TimeTemplateResponse struct {
	ID                  uuid.UUID `json:"id"`
	HospitalID          uuid.UUID `json:"hospital_id"`
	DayOfWeek           int       `json:"day_of_week"`
	StartTime           string    `json:"start_time"`
	EndTime             string    `json:"end_time"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	MaxConcurrent       int       `json:"max_concurrent"`
	IsActive            bool      `json:"is_active"`
}

func toTemplateResponse(t *schedule.TimeTemplate) TimeTemplateResponse {
	return TimeTemplateResponse{
		ID:                  t.ID,
		HospitalID:          t.HospitalID,
		DayOfWeek:           int(t.DayOfWeek),
		StartTime:           t.StartMinute.String(),
		EndTime:             t.EndMinute.String(),
		SlotDurationMinutes: t.SlotDurationMinutes,
		MaxConcurrent:       t.MaxConcurrent,
		IsActive:            t.IsActive,
	}
}

type ClosureRequest struct {
	Date        string  `json:"date"`
	Reason      *string `json:"reason,omitempty"`
	IsRecurring bool    `json:"is_recurring"`
}

type ClosureResponse struct {
	ID          uuid.UUID `json:"id"`
	HospitalID  uuid.UUID `json:"hospital_id"`
	Date        string    `json:"date"`
	Reason      *string   `json:"reason,omitempty"`
	IsRecurring bool      `json:"is_recurring"`
}

func toClosureResponse(c *schedule.Closure) ClosureResponse {
	return ClosureResponse{
		ID:          c.ID,
		HospitalID:  c.HospitalID,
		Date:        c.Date.Format(dateLayout),
		Reason:      c.Reason,
		IsRecurring: c.IsRecurring,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
