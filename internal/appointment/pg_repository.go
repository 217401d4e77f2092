package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

// pgDB is the subset of pgxpool.Pool the repository needs; tests inject
// a pgxmock pool through it.
type pgDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	db pgDB
}

func NewPgRepository(db pgDB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, hospital_id, animal_id, guardian_id, vet_id,
		appointment_date, start_minute, end_minute, duration_minutes,
		type, status, reason, symptoms, notes, cancel_reason,
		created_at, updated_at, checked_in_at, completed_at, cancelled_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var start, end int

	err := row.Scan(
		&a.ID,
		&a.HospitalID,
		&a.AnimalID,
		&a.GuardianID,
		&a.VetID,
		&a.Date,
		&start,
		&end,
		&a.DurationMinutes,
		&a.Type,
		&a.Status,
		&a.Reason,
		&a.Symptoms,
		&a.Notes,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CheckedInAt,
		&a.CompletedAt,
		&a.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartMinute = schedule.MinuteOfDay(start)
	a.EndMinute = schedule.MinuteOfDay(end)
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CountActiveByStart(ctx context.Context, hospitalID uuid.UUID, date time.Time) (map[schedule.MinuteOfDay]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_minute, count(*)
		FROM appointments
		WHERE hospital_id = $1
		  AND appointment_date = $2
		  AND status NOT IN ('cancelled', 'no_show')
		GROUP BY start_minute
	`, hospitalID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[schedule.MinuteOfDay]int)
	for rows.Next() {
		var start, n int
		if err := rows.Scan(&start, &n); err != nil {
			return nil, err
		}
		counts[schedule.MinuteOfDay(start)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// AllocateScheduled serializes on a transaction-scoped advisory lock
// keyed by the slot, so the count-recheck and the insert are one atomic
// unit even if the Redis lock above it ever fails open.
func (r *PgRepository) AllocateScheduled(ctx context.Context, appt Appointment, capacity int) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin allocation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	key := SlotKey(appt.HospitalID, appt.Date, appt.StartMinute)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return nil, fmt.Errorf("acquire slot advisory lock: %w", err)
	}

	count, err := countActiveAtSlot(ctx, tx, appt.HospitalID, appt.Date, appt.StartMinute, nil)
	if err != nil {
		return nil, fmt.Errorf("count active at slot: %w", err)
	}
	if count >= capacity {
		return nil, ErrSlotFull
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, hospital_id, animal_id, guardian_id, vet_id,
			 appointment_date, start_minute, end_minute, duration_minutes,
			 type, status, reason, symptoms, notes,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'scheduled', $11, $12, $13, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.HospitalID, appt.AnimalID, appt.GuardianID, appt.VetID,
		appt.Date, int(appt.StartMinute), int(appt.EndMinute), appt.DurationMinutes,
		appt.Type, appt.Reason, appt.Symptoms, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit allocation tx: %w", err)
	}
	return created, nil
}

func (r *PgRepository) Reallocate(ctx context.Context, appt Appointment, capacity int) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reallocation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	key := SlotKey(appt.HospitalID, appt.Date, appt.StartMinute)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return nil, fmt.Errorf("acquire slot advisory lock: %w", err)
	}

	count, err := countActiveAtSlot(ctx, tx, appt.HospitalID, appt.Date, appt.StartMinute, &appt.ID)
	if err != nil {
		return nil, fmt.Errorf("count active at slot: %w", err)
	}
	if count >= capacity {
		return nil, ErrSlotFull
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $2,
		    start_minute = $3,
		    end_minute = $4,
		    duration_minutes = $5,
		    vet_id = $6,
		    type = $7,
		    reason = $8,
		    symptoms = $9,
		    notes = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.Date, int(appt.StartMinute), int(appt.EndMinute), appt.DurationMinutes,
		appt.VetID, appt.Type, appt.Reason, appt.Symptoms, appt.Notes)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("update appointment slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reallocation tx: %w", err)
	}
	return updated, nil
}

func countActiveAtSlot(ctx context.Context, tx pgx.Tx, hospitalID uuid.UUID, date time.Time, start schedule.MinuteOfDay, exclude *uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE hospital_id = $1
		  AND appointment_date = $2
		  AND start_minute = $3
		  AND status NOT IN ('cancelled', 'no_show')
		  AND ($4::uuid IS NULL OR id <> $4)
	`, hospitalID, date, int(start), exclude).Scan(&count)
	return count, err
}

func (r *PgRepository) UpdateDetails(ctx context.Context, appt Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET vet_id = $2,
		    type = $3,
		    reason = $4,
		    symptoms = $5,
		    notes = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.VetID, appt.Type, appt.Reason, appt.Symptoms, appt.Notes)

	return scanAppointment(row)
}

// UpdateStatus is a compare-and-set on status. Transition timestamps
// are stamped at most once; an already-set value is never overwritten.
func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, cancelReason *string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancel_reason = COALESCE($4, cancel_reason),
		    checked_in_at = CASE WHEN $2::text = 'checked_in' THEN COALESCE(checked_in_at, now()) ELSE checked_in_at END,
		    completed_at  = CASE WHEN $2::text = 'completed'  THEN COALESCE(completed_at,  now()) ELSE completed_at  END,
		    cancelled_at  = CASE WHEN $2::text IN ('cancelled', 'no_show') THEN COALESCE(cancelled_at, now()) ELSE cancelled_at END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, cancelReason)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrStatusChanged
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListByHospitalDate(ctx context.Context, hospitalID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE hospital_id = $1 AND appointment_date = $2
		ORDER BY start_minute, created_at
	`, hospitalID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListByGuardian(ctx context.Context, guardianID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE guardian_id = $1
		ORDER BY appointment_date DESC, start_minute DESC
		LIMIT $2 OFFSET $3
	`, guardianID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkOverdueNoShows sweeps appointments whose guardian never showed up:
// anything still scheduled or confirmed after its slot ended.
func (r *PgRepository) MarkOverdueNoShows(ctx context.Context, cutoffDate time.Time, cutoffMinute schedule.MinuteOfDay) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'no_show',
		    cancelled_at = COALESCE(cancelled_at, now()),
		    updated_at = now()
		WHERE status IN ('scheduled', 'confirmed')
		  AND (appointment_date < $1
		       OR (appointment_date = $1 AND end_minute <= $2))
	`, cutoffDate, int(cutoffMinute))
	if err != nil {
		return 0, fmt.Errorf("mark overdue no-shows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
