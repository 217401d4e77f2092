package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/clinic-scheduling/internal/directory"
	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

// 2026-09-07 is a Monday.
var monday = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

func TestGetAvailableSlotsDeterministic(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "10:00", 30, 2)

	first, err := f.svc.GetAvailableSlots(context.Background(), f.hospitalID, monday)
	require.NoError(t, err)
	second, err := f.svc.GetAvailableSlots(context.Background(), f.hospitalID, monday)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, first.IsHoliday)
	require.Len(t, first.Slots, 2)
	assert.Equal(t, 2, first.Slots[0].Remaining)
	assert.True(t, first.Slots[0].Available)
}

func TestGetAvailableSlotsUnknownHospital(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GetAvailableSlots(context.Background(), uuid.New(), monday)
	assert.ErrorIs(t, err, directory.ErrHospitalNotFound)
}

func TestGetAvailableSlotsHoliday(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "17:00", 30, 2)

	// Recurring closure stored years ago still matches by month/day.
	f.store.closures = append(f.store.closures, schedule.Closure{
		HospitalID:  f.hospitalID,
		Date:        time.Date(2020, time.September, 7, 0, 0, 0, 0, time.UTC),
		IsRecurring: true,
	})

	day, err := f.svc.GetAvailableSlots(context.Background(), f.hospitalID, monday)
	require.NoError(t, err)
	assert.True(t, day.IsHoliday)
	assert.Empty(t, day.Slots)
}

func TestGetAvailableSlotsNoTemplatesForDay(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Tuesday, "09:00", "17:00", 30, 2)

	day, err := f.svc.GetAvailableSlots(context.Background(), f.hospitalID, monday)
	require.NoError(t, err)
	assert.False(t, day.IsHoliday)
	assert.Empty(t, day.Slots)
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 2)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:30"))
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, TypeCheckup, appt.Type)
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.Equal(t, "10:00", appt.EndMinute.String())

	day, err := f.svc.GetAvailableSlots(context.Background(), f.hospitalID, monday)
	require.NoError(t, err)
	assert.Equal(t, 1, day.Slots[1].Remaining)
}

func TestCreateAppointmentNotGuardian(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 2)

	req := f.createRequest(monday, "09:00")
	req.GuardianID = uuid.New()

	_, err := f.svc.CreateAppointment(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotGuardian)
}

func TestCreateAppointmentUnknownAnimal(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 2)

	req := f.createRequest(monday, "09:00")
	req.AnimalID = uuid.New()

	_, err := f.svc.CreateAppointment(context.Background(), req)
	assert.ErrorIs(t, err, directory.ErrAnimalNotFound)
}

func TestCreateAppointmentUnknownHospital(t *testing.T) {
	f := newFixture()

	req := f.createRequest(monday, "09:00")
	req.HospitalID = uuid.New()

	_, err := f.svc.CreateAppointment(context.Background(), req)
	assert.ErrorIs(t, err, directory.ErrHospitalNotFound)
}

func TestCreateAppointmentNoMatchingTemplate(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 2)

	// 13:00 falls outside every window.
	_, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "13:00"))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// 12:00 is the exclusive end boundary.
	_, err = f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "12:00"))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCreateAppointmentOnClosure(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 2)
	f.store.closures = append(f.store.closures, schedule.Closure{
		HospitalID: f.hospitalID,
		Date:       monday,
	})

	_, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCreateAppointmentInvalidType(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 2)

	req := f.createRequest(monday, "09:00")
	req.Type = "house_call"

	_, err := f.svc.CreateAppointment(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateAppointmentFullSlot(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	_, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// A different slot of the same template is still open.
	_, err = f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:30"))
	assert.NoError(t, err)
}

func TestConcurrentBookingLastUnit(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
		}(i)
	}
	wg.Wait()

	successes, rejections := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, ErrSlotUnavailable)
			rejections++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, rejections)
}

func TestConcurrentBurstHoldsCapacityInvariant(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 2)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "10:00"))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 2, successes)

	start, _ := schedule.ParseMinuteOfDay("10:00")
	counts, err := f.repo.CountActiveByStart(context.Background(), f.hospitalID, monday)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[start])
}

func TestCancellationReleasesCapacity(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	day, err := f.svc.GetAvailableSlots(context.Background(), f.hospitalID, monday)
	require.NoError(t, err)
	assert.Equal(t, 0, day.Slots[0].Remaining)

	reason := "pet recovered"
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusCancelled, &reason, f.guardianID, directory.RoleGuardian)
	require.NoError(t, err)

	day, err = f.svc.GetAvailableSlots(context.Background(), f.hospitalID, monday)
	require.NoError(t, err)
	assert.Equal(t, 1, day.Slots[0].Remaining)

	// The freed unit is bookable again.
	_, err = f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	assert.NoError(t, err)
}

func TestCancelRequiresReason(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusCancelled, nil, f.guardianID, directory.RoleGuardian)
	assert.ErrorIs(t, err, ErrCancelReasonRequired)

	blank := "   "
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusCancelled, &blank, f.guardianID, directory.RoleGuardian)
	assert.ErrorIs(t, err, ErrCancelReasonRequired)
}

func TestGuardianMayOnlyCancel(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusConfirmed, nil, f.guardianID, directory.RoleGuardian)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	// A different guardian cannot cancel somebody else's appointment.
	reason := "changed my mind"
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusCancelled, &reason, uuid.New(), directory.RoleGuardian)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusCancelled, &reason, f.guardianID, directory.RoleGuardian)
	assert.NoError(t, err)
}

func TestStaffForwardTransitionsAndTimestamps(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(context.Background(), appt.ID, StatusConfirmed, nil, f.staffID, directory.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
	assert.Nil(t, updated.CheckedInAt)

	updated, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusCheckedIn, nil, f.staffID, directory.RoleStaff)
	require.NoError(t, err)
	require.NotNil(t, updated.CheckedInAt)
	checkedInAt := *updated.CheckedInAt

	updated, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusInProgress, nil, f.staffID, directory.RoleStaff)
	require.NoError(t, err)

	updated, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusCompleted, nil, f.staffID, directory.RoleStaff)
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)

	// Earlier stamps survive later transitions untouched.
	require.NotNil(t, updated.CheckedInAt)
	assert.Equal(t, checkedInAt, *updated.CheckedInAt)
}

func TestSkippingStatesIsPermitted(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	// scheduled -> completed directly, no intermediate states.
	updated, err := f.svc.UpdateStatus(context.Background(), appt.ID, StatusCompleted, nil, f.staffID, directory.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
}

func TestTerminalStatusIsImmutable(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 2)

	for _, terminal := range []Status{StatusCompleted, StatusNoShow} {
		appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
		require.NoError(t, err)
		_, err = f.svc.UpdateStatus(context.Background(), appt.ID, terminal, nil, f.staffID, directory.RoleStaff)
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusConfirmed, nil, f.staffID, directory.RoleStaff)
		assert.ErrorIs(t, err, ErrAppointmentImmutable)

		newStart, _ := schedule.ParseMinuteOfDay("10:00")
		_, err = f.svc.UpdateAppointment(context.Background(), appt.ID, UpdatePatch{Start: &newStart}, directory.RoleStaff)
		assert.ErrorIs(t, err, ErrAppointmentImmutable)

		// Row unchanged.
		got, err := f.svc.GetAppointment(context.Background(), appt.ID)
		require.NoError(t, err)
		assert.Equal(t, terminal, got.Status)
		assert.Equal(t, appt.StartMinute, got.StartMinute)

		// Free the slot for the next iteration.
		require.NoError(t, f.svc.DeleteAppointment(context.Background(), appt.ID, directory.RoleAdmin))
	}
}

func TestUpdateAppointmentMovesSlotWithRecheck(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	first, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:30"))
	require.NoError(t, err)

	// Moving onto the occupied 09:30 slot is rejected.
	occupied, _ := schedule.ParseMinuteOfDay("09:30")
	_, err = f.svc.UpdateAppointment(context.Background(), first.ID, UpdatePatch{Start: &occupied}, directory.RoleStaff)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// Moving to a free slot succeeds.
	free, _ := schedule.ParseMinuteOfDay("10:00")
	moved, err := f.svc.UpdateAppointment(context.Background(), first.ID, UpdatePatch{Start: &free}, directory.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, free, moved.StartMinute)
	assert.Equal(t, "10:30", moved.EndMinute.String())
}

func TestUpdateAppointmentSameSlotExcludesSelf(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	// Re-submitting the appointment's own slot must not see itself as a
	// conflicting booking.
	sameDay := monday
	_, err = f.svc.UpdateAppointment(context.Background(), appt.ID, UpdatePatch{Date: &sameDay}, directory.RoleStaff)
	assert.NoError(t, err)
}

func TestUpdateAppointmentDurationOnly(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)
	require.Equal(t, 30, appt.DurationMinutes)

	longer := 60
	updated, err := f.svc.UpdateAppointment(context.Background(), appt.ID, UpdatePatch{DurationMinutes: &longer}, directory.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, 60, updated.DurationMinutes)
	assert.Equal(t, "10:00", updated.EndMinute.String())
	assert.Equal(t, appt.StartMinute, updated.StartMinute)

	// The change is persisted, not just echoed.
	got, err := f.svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.DurationMinutes)
	assert.Equal(t, "10:00", got.EndMinute.String())
}

func TestUpdateAppointmentRequiresClinicalRole(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	notes := "limping on front left paw"
	_, err = f.svc.UpdateAppointment(context.Background(), appt.ID, UpdatePatch{Notes: &notes}, directory.RoleGuardian)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	updated, err := f.svc.UpdateAppointment(context.Background(), appt.ID, UpdatePatch{Notes: &notes}, directory.RoleVet)
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
}

func TestDeleteAppointmentAdminOnly(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	err = f.svc.DeleteAppointment(context.Background(), appt.ID, directory.RoleStaff)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	err = f.svc.DeleteAppointment(context.Background(), appt.ID, directory.RoleAdmin)
	require.NoError(t, err)

	_, err = f.svc.GetAppointment(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestListByGuardianClampsLimit(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 6)

	for _, start := range []string{"09:00", "09:30", "10:00"} {
		_, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, start))
		require.NoError(t, err)
	}

	appts, err := f.svc.ListByGuardian(context.Background(), f.guardianID, -5, -1)
	require.NoError(t, err)
	assert.Len(t, appts, 3)

	appts, err = f.svc.ListByGuardian(context.Background(), f.guardianID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, appts, 2)
}

func TestBookingWritesEventLog(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 1)

	appt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	reason := "schedule conflict"
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, StatusCancelled, &reason, f.guardianID, directory.RoleGuardian)
	require.NoError(t, err)

	var types []string
	for _, ev := range f.repo.events {
		types = append(types, ev.EventType)
	}
	assert.Contains(t, types, EventAppointmentBooked)
	assert.Contains(t, types, EventStatusChanged)
}

func TestSweepNoShows(t *testing.T) {
	f := newFixture()
	f.addTemplate(time.Monday, "09:00", "12:00", 30, 3)

	overdue, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:00"))
	require.NoError(t, err)

	seen, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday, "09:30"))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), seen.ID, StatusCompleted, nil, f.staffID, directory.RoleStaff)
	require.NoError(t, err)

	upcoming, err := f.svc.CreateAppointment(context.Background(), f.createRequest(monday.AddDate(0, 0, 7), "09:00"))
	require.NoError(t, err)

	// The day after the first monday, well past every slot.
	f.svc.now = func() time.Time { return monday.AddDate(0, 0, 1).Add(12 * time.Hour) }

	swept, err := f.svc.SweepNoShows(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	got, err := f.repo.GetByID(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)
	assert.NotNil(t, got.CancelledAt)

	got, err = f.repo.GetByID(context.Background(), seen.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	got, err = f.repo.GetByID(context.Background(), upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
}
