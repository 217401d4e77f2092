package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTemplateNotFound = errors.New("time template not found")
	ErrTemplateExists   = errors.New("an active template already exists for this day and start time")
	ErrClosureNotFound  = errors.New("closure not found")
)

// Store holds the recurring weekly templates and closure dates for
// every clinic. Read paths are hot (every availability query and every
// booking); writes are rare clinic-admin actions.
type Store interface {
	// ActiveTemplates returns the active templates for one day of week,
	// ordered by start minute.
	ActiveTemplates(ctx context.Context, hospitalID uuid.UUID, day time.Weekday) ([]TimeTemplate, error)

	// ClosureFor returns the closure blocking the given date, matching
	// either an exact date or a yearly-recurring month/day, or nil.
	ClosureFor(ctx context.Context, hospitalID uuid.UUID, date time.Time) (*Closure, error)

	CreateTemplate(ctx context.Context, t TimeTemplate) (*TimeTemplate, error)
	ListTemplates(ctx context.Context, hospitalID uuid.UUID) ([]TimeTemplate, error)
	UpdateTemplate(ctx context.Context, t TimeTemplate) (*TimeTemplate, error)
	DeleteTemplate(ctx context.Context, hospitalID, id uuid.UUID) error

	CreateClosure(ctx context.Context, c Closure) (*Closure, error)
	ListClosures(ctx context.Context, hospitalID uuid.UUID) ([]Closure, error)
	DeleteClosure(ctx context.Context, hospitalID, id uuid.UUID) error
}
