package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vetdesk/clinic-scheduling/internal/directory"
	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

// memRepo is an in-memory Repository with the same atomicity contract
// as the Postgres implementation: the capacity recheck and the insert
// happen under one lock.
type memRepo struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]*Appointment
	events []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]*Appointment)}
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) CountActiveByStart(_ context.Context, hospitalID uuid.UUID, date time.Time) (map[schedule.MinuteOfDay]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[schedule.MinuteOfDay]int)
	for _, a := range r.rows {
		if a.HospitalID == hospitalID && sameDate(a.Date, date) && a.Status.CountsAgainstCapacity() {
			counts[a.StartMinute]++
		}
	}
	return counts, nil
}

func (r *memRepo) countAt(hospitalID uuid.UUID, date time.Time, start schedule.MinuteOfDay, exclude *uuid.UUID) int {
	n := 0
	for _, a := range r.rows {
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if a.HospitalID == hospitalID && sameDate(a.Date, date) &&
			a.StartMinute == start && a.Status.CountsAgainstCapacity() {
			n++
		}
	}
	return n
}

func (r *memRepo) AllocateScheduled(_ context.Context, appt Appointment, capacity int) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.countAt(appt.HospitalID, appt.Date, appt.StartMinute, nil) >= capacity {
		return nil, ErrSlotFull
	}

	appt.ID = uuid.New()
	appt.Status = StatusScheduled
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	r.rows[appt.ID] = &appt

	cp := appt
	return &cp, nil
}

func (r *memRepo) Reallocate(_ context.Context, appt Appointment, capacity int) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rows[appt.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if r.countAt(appt.HospitalID, appt.Date, appt.StartMinute, &appt.ID) >= capacity {
		return nil, ErrSlotFull
	}

	appt.Status = existing.Status
	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = time.Now()
	r.rows[appt.ID] = &appt

	cp := appt
	return &cp, nil
}

func (r *memRepo) UpdateDetails(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rows[appt.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	existing.VetID = appt.VetID
	existing.Type = appt.Type
	existing.Reason = appt.Reason
	existing.Symptoms = appt.Symptoms
	existing.Notes = appt.Notes
	existing.UpdatedAt = time.Now()

	cp := *existing
	return &cp, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, cancelReason *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok || a.Status != from {
		return nil, ErrStatusChanged
	}

	now := time.Now()
	a.Status = to
	if cancelReason != nil {
		a.CancelReason = cancelReason
	}
	switch to {
	case StatusCheckedIn:
		if a.CheckedInAt == nil {
			a.CheckedInAt = &now
		}
	case StatusCompleted:
		if a.CompletedAt == nil {
			a.CompletedAt = &now
		}
	case StatusCancelled, StatusNoShow:
		if a.CancelledAt == nil {
			a.CancelledAt = &now
		}
	}
	a.UpdatedAt = now

	cp := *a
	return &cp, nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) ListByHospitalDate(_ context.Context, hospitalID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.rows {
		if a.HospitalID == hospitalID && sameDate(a.Date, date) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) ListByGuardian(_ context.Context, guardianID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.rows {
		if a.GuardianID == guardianID {
			out = append(out, *a)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) MarkOverdueNoShows(_ context.Context, cutoffDate time.Time, cutoffMinute schedule.MinuteOfDay) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept int64
	now := time.Now()
	for _, a := range r.rows {
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			continue
		}
		overdue := a.Date.Before(cutoffDate) ||
			(sameDate(a.Date, cutoffDate) && a.EndMinute <= cutoffMinute)
		if !overdue {
			continue
		}
		a.Status = StatusNoShow
		if a.CancelledAt == nil {
			a.CancelledAt = &now
		}
		a.UpdatedAt = now
		swept++
	}
	return swept, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// fakeStore serves templates and closures from slices.
type fakeStore struct {
	schedule.Store
	templates []schedule.TimeTemplate
	closures  []schedule.Closure
}

func (s *fakeStore) ActiveTemplates(_ context.Context, hospitalID uuid.UUID, day time.Weekday) ([]schedule.TimeTemplate, error) {
	var out []schedule.TimeTemplate
	for _, t := range s.templates {
		if t.HospitalID == hospitalID && t.DayOfWeek == day && t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) ClosureFor(_ context.Context, hospitalID uuid.UUID, date time.Time) (*schedule.Closure, error) {
	for _, c := range s.closures {
		if c.HospitalID == hospitalID && c.Matches(date) {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeClinics knows a fixed set of hospitals and user roles.
type fakeClinics struct {
	hospitals map[uuid.UUID]bool
	roles     map[uuid.UUID]directory.Role
}

func (c *fakeClinics) HospitalExists(_ context.Context, id uuid.UUID) error {
	if !c.hospitals[id] {
		return directory.ErrHospitalNotFound
	}
	return nil
}

func (c *fakeClinics) UserRole(_ context.Context, id uuid.UUID) (directory.Role, error) {
	r, ok := c.roles[id]
	if !ok {
		return "", directory.ErrUserNotFound
	}
	return r, nil
}

// fakeGuardians holds guardian->animal relations.
type fakeGuardians struct {
	animals   map[uuid.UUID]bool
	relations map[[2]uuid.UUID]bool
}

func (g *fakeGuardians) IsGuardian(_ context.Context, guardianID, animalID uuid.UUID) (bool, error) {
	if !g.animals[animalID] {
		return false, directory.ErrAnimalNotFound
	}
	return g.relations[[2]uuid.UUID{guardianID, animalID}], nil
}

// keyLocker serializes callbacks per slot key with a blocking mutex, so
// racing bookings run one after another and the loser fails on the
// capacity recheck rather than on lock contention.
type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *keyLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[slotKey]
	if !ok {
		m = &sync.Mutex{}
		l.locks[slotKey] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type fixture struct {
	svc       *Service
	repo      *memRepo
	store     *fakeStore
	clinics   *fakeClinics
	guardians *fakeGuardians

	hospitalID uuid.UUID
	animalID   uuid.UUID
	guardianID uuid.UUID
	staffID    uuid.UUID
	adminID    uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:       newMemRepo(),
		hospitalID: uuid.New(),
		animalID:   uuid.New(),
		guardianID: uuid.New(),
		staffID:    uuid.New(),
		adminID:    uuid.New(),
	}
	f.store = &fakeStore{}
	f.clinics = &fakeClinics{
		hospitals: map[uuid.UUID]bool{f.hospitalID: true},
		roles: map[uuid.UUID]directory.Role{
			f.guardianID: directory.RoleGuardian,
			f.staffID:    directory.RoleStaff,
			f.adminID:    directory.RoleAdmin,
		},
	}
	f.guardians = &fakeGuardians{
		animals:   map[uuid.UUID]bool{f.animalID: true},
		relations: map[[2]uuid.UUID]bool{{f.guardianID, f.animalID}: true},
	}

	f.svc = NewService(f.repo, f.store, f.clinics, f.guardians, newKeyLocker(), nil, zerolog.Nop())
	return f
}

func (f *fixture) addTemplate(day time.Weekday, start, end string, dur, capacity int) {
	s, _ := schedule.ParseMinuteOfDay(start)
	e, _ := schedule.ParseMinuteOfDay(end)
	f.store.templates = append(f.store.templates, schedule.TimeTemplate{
		ID:                  uuid.New(),
		HospitalID:          f.hospitalID,
		DayOfWeek:           day,
		StartMinute:         s,
		EndMinute:           e,
		SlotDurationMinutes: dur,
		MaxConcurrent:       capacity,
		IsActive:            true,
	})
}

func (f *fixture) createRequest(date time.Time, start string) CreateRequest {
	m, _ := schedule.ParseMinuteOfDay(start)
	return CreateRequest{
		HospitalID: f.hospitalID,
		AnimalID:   f.animalID,
		GuardianID: f.guardianID,
		Date:       date,
		Start:      m,
	}
}
