package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vetdesk/clinic-scheduling/internal/directory"
	"github.com/vetdesk/clinic-scheduling/internal/metrics"
	redisclient "github.com/vetdesk/clinic-scheduling/internal/redis"
	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

const (
	EventAppointmentBooked  = "APPOINTMENT_BOOKED"
	EventSlotChanged        = "SLOT_CHANGED"
	EventStatusChanged      = "STATUS_CHANGED"
	EventAppointmentDeleted = "APPOINTMENT_DELETED"
)

var (
	ErrNotGuardian          = errors.New("requester is not a registered guardian of this animal")
	ErrRoleForbidden        = errors.New("role not permitted to perform this operation")
	ErrSlotUnavailable      = errors.New("slot unavailable")
	ErrSlotContended        = errors.New("slot is currently being booked, please retry")
	ErrCancelReasonRequired = errors.New("cancel reason is required")
	ErrAppointmentImmutable = errors.New("appointment is in a terminal status and cannot be changed")
	ErrInvalidStatus        = errors.New("invalid appointment status")
	ErrInvalidRequest       = errors.New("invalid appointment request")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	repo      Repository
	store     schedule.Store
	clinics   directory.ClinicDirectory
	guardians directory.GuardianRegistry
	locker    redisclient.Locker
	metrics   *metrics.BookingMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	store schedule.Store,
	clinics directory.ClinicDirectory,
	guardians directory.GuardianRegistry,
	locker redisclient.Locker,
	m *metrics.BookingMetrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		clinics:   clinics,
		guardians: guardians,
		locker:    locker,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// DayAvailability is the availability snapshot for one hospital/date.
type DayAvailability struct {
	Date      time.Time
	IsHoliday bool
	Slots     []schedule.SlotAvailability
}

// GetAvailableSlots computes the bookable windows for a date. It is a
// point-in-time snapshot, not a reservation; the booking path always
// re-derives availability on its own.
func (s *Service) GetAvailableSlots(ctx context.Context, hospitalID uuid.UUID, date time.Time) (*DayAvailability, error) {
	if err := s.clinics.HospitalExists(ctx, hospitalID); err != nil {
		return nil, err
	}

	s.metrics.ObserveSlotQuery()

	closure, err := s.store.ClosureFor(ctx, hospitalID, date)
	if err != nil {
		return nil, fmt.Errorf("look up closure: %w", err)
	}
	if closure != nil {
		return &DayAvailability{Date: date, IsHoliday: true}, nil
	}

	templates, err := s.store.ActiveTemplates(ctx, hospitalID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	slots := schedule.GenerateSlots(templates)
	if len(slots) == 0 {
		return &DayAvailability{Date: date}, nil
	}

	booked, err := s.repo.CountActiveByStart(ctx, hospitalID, date)
	if err != nil {
		return nil, fmt.Errorf("count existing bookings: %w", err)
	}

	return &DayAvailability{
		Date:  date,
		Slots: schedule.ComputeAvailability(slots, booked),
	}, nil
}

type CreateRequest struct {
	HospitalID      uuid.UUID
	AnimalID        uuid.UUID
	GuardianID      uuid.UUID
	VetID           *uuid.UUID
	Date            time.Time
	Start           schedule.MinuteOfDay
	DurationMinutes int // 0 means the template's slot duration
	Type            Type
	Reason          *string
	Symptoms        *string
	Notes           *string
}

// CreateAppointment reserves a slot for a guardian's animal. The
// caller-visible availability snapshot is advisory only: template
// match, closure check and capacity count are all re-derived inside the
// per-slot critical section.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	ok, err := s.guardians.IsGuardian(ctx, req.GuardianID, req.AnimalID)
	if err != nil {
		if errors.Is(err, directory.ErrAnimalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("check guardian relationship: %w", err)
	}
	if !ok {
		s.metrics.ObserveBooking("forbidden")
		return nil, ErrNotGuardian
	}

	if err := s.clinics.HospitalExists(ctx, req.HospitalID); err != nil {
		return nil, err
	}

	if req.Type == "" {
		req.Type = TypeCheckup
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, req.Type)
	}

	var created *Appointment
	key := SlotKey(req.HospitalID, req.Date, req.Start)
	start := s.now()

	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		tmpl, err := s.matchBookableTemplate(lockCtx, req.HospitalID, req.Date, req.Start)
		if err != nil {
			return err
		}

		duration := req.DurationMinutes
		if duration <= 0 {
			duration = tmpl.SlotDurationMinutes
		}

		appt := Appointment{
			HospitalID:      req.HospitalID,
			AnimalID:        req.AnimalID,
			GuardianID:      req.GuardianID,
			VetID:           req.VetID,
			Date:            req.Date,
			StartMinute:     req.Start,
			EndMinute:       req.Start + schedule.MinuteOfDay(duration),
			DurationMinutes: duration,
			Type:            req.Type,
			Reason:          req.Reason,
			Symptoms:        req.Symptoms,
			Notes:           req.Notes,
		}

		created, err = s.repo.AllocateScheduled(lockCtx, appt, tmpl.MaxConcurrent)
		if err != nil {
			if errors.Is(err, ErrSlotFull) {
				// Indistinguishable from a stale-snapshot rejection.
				return ErrSlotUnavailable
			}
			return fmt.Errorf("allocate appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentBooked, map[string]any{
			"hospital_id": req.HospitalID.String(),
			"animal_id":   req.AnimalID.String(),
			"slot_key":    key,
		})
		return nil
	})

	s.metrics.ObserveAllocationLatency(s.now().Sub(start).Seconds())

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.ObserveBooking("contended")
			return nil, ErrSlotContended
		case errors.Is(err, ErrSlotUnavailable):
			s.metrics.ObserveBooking("rejected")
			return nil, err
		default:
			s.metrics.ObserveBooking("error")
			return nil, err
		}
	}

	s.metrics.ObserveBooking("committed")
	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot_key", key).
		Msg("appointment booked")

	return created, nil
}

// matchBookableTemplate re-derives slot validity for a booking attempt:
// no closure on the date, and an active template covering the start.
func (s *Service) matchBookableTemplate(ctx context.Context, hospitalID uuid.UUID, date time.Time, start schedule.MinuteOfDay) (*schedule.TimeTemplate, error) {
	closure, err := s.store.ClosureFor(ctx, hospitalID, date)
	if err != nil {
		return nil, fmt.Errorf("look up closure: %w", err)
	}
	if closure != nil {
		return nil, ErrSlotUnavailable
	}

	templates, err := s.store.ActiveTemplates(ctx, hospitalID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	tmpl := schedule.MatchTemplate(templates, start)
	if tmpl == nil {
		return nil, ErrSlotUnavailable
	}
	return tmpl, nil
}

// UpdatePatch carries the changeable appointment fields. Nil means
// leave unchanged.
type UpdatePatch struct {
	Date            *time.Time
	Start           *schedule.MinuteOfDay
	DurationMinutes *int
	VetID           *uuid.UUID
	Type            *Type
	Reason          *string
	Symptoms        *string
	Notes           *string
}

// movesSlot reports whether the patch changes the booked window. A
// duration change alters end_minute, so it takes the reallocation path
// like a date or start change.
func (p UpdatePatch) movesSlot() bool {
	return p.Date != nil || p.Start != nil || p.DurationMinutes != nil
}

// UpdateAppointment applies a staff-driven patch. Moving the
// appointment to another slot re-runs the availability check, with the
// appointment itself excluded from the capacity count.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, patch UpdatePatch, actorRole directory.Role) (*Appointment, error) {
	if !actorRole.Clinical() {
		return nil, ErrRoleForbidden
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Type != nil && !patch.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, *patch.Type)
	}

	if patch.movesSlot() && appt.Status.Terminal() {
		return nil, ErrAppointmentImmutable
	}

	applyPatchDetails(appt, patch)

	if !patch.movesSlot() {
		return s.repo.UpdateDetails(ctx, *appt)
	}

	if patch.Date != nil {
		appt.Date = *patch.Date
	}
	if patch.Start != nil {
		appt.StartMinute = *patch.Start
	}

	var updated *Appointment
	key := SlotKey(appt.HospitalID, appt.Date, appt.StartMinute)

	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		tmpl, err := s.matchBookableTemplate(lockCtx, appt.HospitalID, appt.Date, appt.StartMinute)
		if err != nil {
			return err
		}

		duration := appt.DurationMinutes
		if patch.DurationMinutes != nil {
			duration = *patch.DurationMinutes
		}
		if duration <= 0 {
			duration = tmpl.SlotDurationMinutes
		}
		appt.DurationMinutes = duration
		appt.EndMinute = appt.StartMinute + schedule.MinuteOfDay(duration)

		updated, err = s.repo.Reallocate(lockCtx, *appt, tmpl.MaxConcurrent)
		if err != nil {
			if errors.Is(err, ErrSlotFull) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("reallocate appointment: %w", err)
		}

		s.logEvent(lockCtx, appt.ID, EventSlotChanged, map[string]any{
			"slot_key": key,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	return updated, nil
}

func applyPatchDetails(appt *Appointment, patch UpdatePatch) {
	if patch.VetID != nil {
		appt.VetID = patch.VetID
	}
	if patch.Type != nil {
		appt.Type = *patch.Type
	}
	if patch.Reason != nil {
		appt.Reason = patch.Reason
	}
	if patch.Symptoms != nil {
		appt.Symptoms = patch.Symptoms
	}
	if patch.Notes != nil {
		appt.Notes = patch.Notes
	}
}

// UpdateStatus drives the appointment lifecycle. Clinical roles may
// perform any transition; the owning guardian may only cancel. Skipping
// intermediate states is deliberately permitted.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, cancelReason *string, actorID uuid.UUID, actorRole directory.Role) (*Appointment, error) {
	if !to.Valid() || to == StatusScheduled {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status.Terminal() {
		return nil, ErrAppointmentImmutable
	}

	if to == StatusCancelled {
		if !actorRole.Clinical() && actorID != appt.GuardianID {
			return nil, ErrRoleForbidden
		}
		if cancelReason == nil || strings.TrimSpace(*cancelReason) == "" {
			return nil, ErrCancelReasonRequired
		}
	} else {
		if !actorRole.Clinical() {
			return nil, ErrRoleForbidden
		}
		cancelReason = nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, to, cancelReason)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(to)).
		Msg("appointment status changed")

	return updated, nil
}

// DeleteAppointment is an administrative hard delete, outside the
// normal booking flow.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID, actorRole directory.Role) error {
	if actorRole != directory.RoleAdmin {
		return ErrRoleForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) ListByHospitalDate(ctx context.Context, hospitalID uuid.UUID, date time.Time) ([]Appointment, error) {
	if err := s.clinics.HospitalExists(ctx, hospitalID); err != nil {
		return nil, err
	}
	return s.repo.ListByHospitalDate(ctx, hospitalID, date)
}

func (s *Service) ListByGuardian(ctx context.Context, guardianID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.ListByGuardian(ctx, guardianID, limit, offset)
}

// SweepNoShows marks appointments whose slot ended more than grace ago
// and that never progressed past confirmed. Runs from the noshow-worker.
func (s *Service) SweepNoShows(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := s.now().Add(-grace)
	cutoffDate := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	cutoffMinute := schedule.MinuteOfDay(cutoff.Hour()*60 + cutoff.Minute())

	swept, err := s.repo.MarkOverdueNoShows(ctx, cutoffDate, cutoffMinute)
	if err != nil {
		return 0, fmt.Errorf("sweep no-shows: %w", err)
	}

	if swept > 0 {
		s.logger.Info().Int64("swept", swept).Msg("overdue appointments marked no_show")
	}
	return swept, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("marshal event payload failed")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log failed")
	}
}
