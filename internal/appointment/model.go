package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CountsAgainstCapacity reports whether an appointment in this status
// still occupies a capacity unit of its slot.
func (s Status) CountsAgainstCapacity() bool {
	return s != StatusCancelled && s != StatusNoShow
}

type Type string

const (
	TypeCheckup      Type = "checkup"
	TypeVaccination  Type = "vaccination"
	TypeSurgery      Type = "surgery"
	TypeDental       Type = "dental"
	TypeGrooming     Type = "grooming"
	TypeEmergency    Type = "emergency"
	TypeConsultation Type = "consultation"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCheckup, TypeVaccination, TypeSurgery, TypeDental,
		TypeGrooming, TypeEmergency, TypeConsultation:
		return true
	}
	return false
}

type Appointment struct {
	ID              uuid.UUID
	HospitalID      uuid.UUID
	AnimalID        uuid.UUID
	GuardianID      uuid.UUID
	VetID           *uuid.UUID
	Date            time.Time
	StartMinute     schedule.MinuteOfDay
	EndMinute       schedule.MinuteOfDay
	DurationMinutes int
	Type            Type
	Status          Status
	Reason          *string
	Symptoms        *string
	Notes           *string
	CancelReason    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CheckedInAt     *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
}

// SlotKey identifies the contended booking resource: one hospital, one
// calendar date, one slot start. Doubles as the distributed-lock key.
func SlotKey(hospitalID uuid.UUID, date time.Time, start schedule.MinuteOfDay) string {
	return fmt.Sprintf("%s:%s:%d", hospitalID, date.Format("2006-01-02"), int(start))
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
