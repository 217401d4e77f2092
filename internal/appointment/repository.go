package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotFull is returned by the transactional allocator when the
	// capacity recheck inside the transaction loses the race.
	ErrSlotFull = errors.New("slot capacity exhausted")

	// ErrStatusChanged is returned when a compare-and-set status update
	// finds the row no longer in the expected status.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CountActiveByStart groups existing capacity-holding appointments
	// for one hospital/date by slot start minute.
	CountActiveByStart(ctx context.Context, hospitalID uuid.UUID, date time.Time) (map[schedule.MinuteOfDay]int, error)

	// AllocateScheduled atomically rechecks remaining capacity at the
	// appointment's slot key and inserts the row with status scheduled.
	// Returns ErrSlotFull when the slot is at capacity.
	AllocateScheduled(ctx context.Context, appt Appointment, capacity int) (*Appointment, error)

	// Reallocate atomically rechecks capacity at the appointment's new
	// slot key, excluding the appointment itself from the count, and
	// persists the changed row.
	Reallocate(ctx context.Context, appt Appointment, capacity int) (*Appointment, error)

	// UpdateDetails persists non-slot field changes (vet, reason,
	// symptoms, notes, type).
	UpdateDetails(ctx context.Context, appt Appointment) (*Appointment, error)

	// UpdateStatus performs a compare-and-set from -> to, records the
	// cancel reason when provided, and stamps the transition timestamp
	// only if it was not already set.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, cancelReason *string) (*Appointment, error)

	Delete(ctx context.Context, id uuid.UUID) error

	ListByHospitalDate(ctx context.Context, hospitalID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByGuardian(ctx context.Context, guardianID uuid.UUID, limit, offset int) ([]Appointment, error)

	// MarkOverdueNoShows flips scheduled/confirmed appointments whose
	// slot ended at or before the cutoff to no_show. Returns the number
	// of rows swept.
	MarkOverdueNoShows(ctx context.Context, cutoffDate time.Time, cutoffMinute schedule.MinuteOfDay) (int64, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
