package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of pgxpool.Pool the store needs; tests inject
// a pgxmock pool through it.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgStore struct {
	db querier
}

func NewPgStore(db querier) *PgStore {
	return &PgStore{db: db}
}

func scanTemplate(row pgx.Row) (*TimeTemplate, error) {
	var t TimeTemplate
	var day, start, end int

	err := row.Scan(
		&t.ID,
		&t.HospitalID,
		&day,
		&start,
		&end,
		&t.SlotDurationMinutes,
		&t.MaxConcurrent,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	t.DayOfWeek = time.Weekday(day)
	t.StartMinute = MinuteOfDay(start)
	t.EndMinute = MinuteOfDay(end)
	return &t, nil
}

func scanClosure(row pgx.Row) (*Closure, error) {
	var c Closure
	var reason *string

	err := row.Scan(
		&c.ID,
		&c.HospitalID,
		&c.Date,
		&reason,
		&c.IsRecurring,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClosureNotFound
		}
		return nil, err
	}

	c.Reason = reason
	return &c, nil
}

const templateColumns = `id, hospital_id, day_of_week, start_minute, end_minute,
		slot_duration_minutes, max_concurrent, is_active, created_at, updated_at`

func (s *PgStore) ActiveTemplates(ctx context.Context, hospitalID uuid.UUID, day time.Weekday) ([]TimeTemplate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+templateColumns+`
		FROM time_templates
		WHERE hospital_id = $1 AND day_of_week = $2 AND is_active
		ORDER BY start_minute
	`, hospitalID, int(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTemplates(rows)
}

func (s *PgStore) ListTemplates(ctx context.Context, hospitalID uuid.UUID) ([]TimeTemplate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+templateColumns+`
		FROM time_templates
		WHERE hospital_id = $1
		ORDER BY day_of_week, start_minute
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTemplates(rows)
}

func collectTemplates(rows pgx.Rows) ([]TimeTemplate, error) {
	var result []TimeTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ClosureFor matches either an exact-date closure or a recurring one
// whose stored month/day equals the target's, year ignored.
func (s *PgStore) ClosureFor(ctx context.Context, hospitalID uuid.UUID, date time.Time) (*Closure, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, hospital_id, closure_date, reason, is_recurring, created_at
		FROM closures
		WHERE hospital_id = $1
		  AND (
			(NOT is_recurring AND closure_date = $2)
			OR (is_recurring
				AND EXTRACT(MONTH FROM closure_date) = $3
				AND EXTRACT(DAY FROM closure_date) = $4)
		  )
		LIMIT 1
	`, hospitalID, date, int(date.Month()), date.Day())

	c, err := scanClosure(row)
	if err != nil {
		if errors.Is(err, ErrClosureNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (s *PgStore) CreateTemplate(ctx context.Context, t TimeTemplate) (*TimeTemplate, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	row := s.db.QueryRow(ctx, `
		INSERT INTO time_templates
			(id, hospital_id, day_of_week, start_minute, end_minute,
			 slot_duration_minutes, max_concurrent, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+templateColumns+`
	`, id, t.HospitalID, int(t.DayOfWeek), int(t.StartMinute), int(t.EndMinute),
		t.SlotDurationMinutes, t.MaxConcurrent, t.IsActive)

	created, err := scanTemplate(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTemplateExists
		}
		return nil, err
	}
	return created, nil
}

func (s *PgStore) UpdateTemplate(ctx context.Context, t TimeTemplate) (*TimeTemplate, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		UPDATE time_templates
		SET day_of_week = $3,
		    start_minute = $4,
		    end_minute = $5,
		    slot_duration_minutes = $6,
		    max_concurrent = $7,
		    is_active = $8,
		    updated_at = now()
		WHERE id = $1 AND hospital_id = $2
		RETURNING `+templateColumns+`
	`, t.ID, t.HospitalID, int(t.DayOfWeek), int(t.StartMinute), int(t.EndMinute),
		t.SlotDurationMinutes, t.MaxConcurrent, t.IsActive)

	updated, err := scanTemplate(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTemplateExists
		}
		return nil, err
	}
	return updated, nil
}

// DeleteTemplate soft-disables the template so historical slot
// computations remain reproducible.
func (s *PgStore) DeleteTemplate(ctx context.Context, hospitalID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE time_templates
		SET is_active = false,
		    updated_at = now()
		WHERE id = $1 AND hospital_id = $2
	`, id, hospitalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (s *PgStore) CreateClosure(ctx context.Context, c Closure) (*Closure, error) {
	id := uuid.New()
	row := s.db.QueryRow(ctx, `
		INSERT INTO closures (id, hospital_id, closure_date, reason, is_recurring, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, hospital_id, closure_date, reason, is_recurring, created_at
	`, id, c.HospitalID, c.Date, c.Reason, c.IsRecurring)

	return scanClosure(row)
}

func (s *PgStore) ListClosures(ctx context.Context, hospitalID uuid.UUID) ([]Closure, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, hospital_id, closure_date, reason, is_recurring, created_at
		FROM closures
		WHERE hospital_id = $1
		ORDER BY closure_date
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Closure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) DeleteClosure(ctx context.Context, hospitalID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM closures
		WHERE id = $1 AND hospital_id = $2
	`, id, hospitalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClosureNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
