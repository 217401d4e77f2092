package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgDirectory implements both ClinicDirectory and GuardianRegistry over
// the hospitals/users/animals tables owned by the wider platform.
type PgDirectory struct {
	db querier
}

func NewPgDirectory(db querier) *PgDirectory {
	return &PgDirectory{db: db}
}

func (d *PgDirectory) HospitalExists(ctx context.Context, hospitalID uuid.UUID) error {
	var exists bool
	err := d.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM hospitals WHERE id = $1)
	`, hospitalID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrHospitalNotFound
	}
	return nil
}

func (d *PgDirectory) UserRole(ctx context.Context, userID uuid.UUID) (Role, error) {
	var role Role
	err := d.db.QueryRow(ctx, `
		SELECT role FROM users WHERE id = $1
	`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return role, nil
}

func (d *PgDirectory) IsGuardian(ctx context.Context, guardianID, animalID uuid.UUID) (bool, error) {
	var animalExists bool
	err := d.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM animals WHERE id = $1)
	`, animalID).Scan(&animalExists)
	if err != nil {
		return false, err
	}
	if !animalExists {
		return false, ErrAnimalNotFound
	}

	var related bool
	err = d.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM animal_guardians
			WHERE animal_id = $1 AND guardian_id = $2
		)
	`, animalID, guardianID).Scan(&related)
	if err != nil {
		return false, err
	}
	return related, nil
}
