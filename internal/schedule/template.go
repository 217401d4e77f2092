package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MinSlotDurationMinutes = 10
	MaxSlotDurationMinutes = 120
	MinSlotCapacity        = 1
	MaxSlotCapacity        = 10
)

var ErrInvalidTemplate = errors.New("invalid time template")

// TimeTemplate is a clinic's recurring weekly availability rule: on a
// given day of week the clinic accepts bookings between StartMinute and
// EndMinute, carved into SlotDurationMinutes slots of MaxConcurrent
// capacity each. Templates are soft-disabled via IsActive so past slot
// computations stay reproducible.
type TimeTemplate struct {
	ID                  uuid.UUID
	HospitalID          uuid.UUID
	DayOfWeek           time.Weekday
	StartMinute         MinuteOfDay
	EndMinute           MinuteOfDay
	SlotDurationMinutes int
	MaxConcurrent       int
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (t TimeTemplate) Validate() error {
	if t.DayOfWeek < time.Sunday || t.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day of week %d out of range", ErrInvalidTemplate, t.DayOfWeek)
	}
	if t.StartMinute >= t.EndMinute {
		return fmt.Errorf("%w: start %s must precede end %s", ErrInvalidTemplate, t.StartMinute, t.EndMinute)
	}
	if t.SlotDurationMinutes < MinSlotDurationMinutes || t.SlotDurationMinutes > MaxSlotDurationMinutes {
		return fmt.Errorf("%w: slot duration %d outside %d-%d", ErrInvalidTemplate,
			t.SlotDurationMinutes, MinSlotDurationMinutes, MaxSlotDurationMinutes)
	}
	if t.MaxConcurrent < MinSlotCapacity || t.MaxConcurrent > MaxSlotCapacity {
		return fmt.Errorf("%w: capacity %d outside %d-%d", ErrInvalidTemplate,
			t.MaxConcurrent, MinSlotCapacity, MaxSlotCapacity)
	}
	return nil
}

// Covers reports whether a requested start time falls inside this
// template's window, i.e. start <= m < end.
func (t TimeTemplate) Covers(m MinuteOfDay) bool {
	return m >= t.StartMinute && m < t.EndMinute
}

// Closure is a date on which the clinic takes no bookings. Recurring
// closures match the same month and day every year.
type Closure struct {
	ID          uuid.UUID
	HospitalID  uuid.UUID
	Date        time.Time
	Reason      *string
	IsRecurring bool
	CreatedAt   time.Time
}

// Matches reports whether the closure blocks the given calendar date.
// Recurring closures compare (month, day) tuples so leap-day closures
// behave predictably across years.
func (c Closure) Matches(date time.Time) bool {
	if c.IsRecurring {
		return c.Date.Month() == date.Month() && c.Date.Day() == date.Day()
	}
	return c.Date.Year() == date.Year() &&
		c.Date.Month() == date.Month() &&
		c.Date.Day() == date.Day()
}
