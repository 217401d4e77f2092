package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrHospitalNotFound = errors.New("hospital not found")
	ErrAnimalNotFound   = errors.New("animal not found")
	ErrUserNotFound     = errors.New("user not found")
)

// Role is the acting user's relationship to the clinic. Guardians book
// and cancel their own appointments; clinical roles drive the rest of
// the appointment lifecycle.
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleStaff    Role = "staff"
	RoleVet      Role = "vet"
	RoleAdmin    Role = "admin"
)

// Clinical reports whether the role may drive forward status
// transitions and edit appointment details.
func (r Role) Clinical() bool {
	return r == RoleStaff || r == RoleVet || r == RoleAdmin
}

// ClinicDirectory answers existence and role questions about hospitals
// and users. The scheduling core treats it as an opaque collaborator.
type ClinicDirectory interface {
	// HospitalExists returns nil, or ErrHospitalNotFound.
	HospitalExists(ctx context.Context, hospitalID uuid.UUID) error

	// UserRole returns the role of a user, or ErrUserNotFound.
	UserRole(ctx context.Context, userID uuid.UUID) (Role, error)
}

// GuardianRegistry answers whether a guardian is a registered caretaker
// of an animal.
type GuardianRegistry interface {
	// IsGuardian returns false for an unrelated guardian and
	// ErrAnimalNotFound for an unknown animal.
	IsGuardian(ctx context.Context, guardianID, animalID uuid.UUID) (bool, error)
}
