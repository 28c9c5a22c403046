package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinic-api/internal/models"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

type mockAvailDoctorRepo struct {
	doctors    map[string]models.Doctor
	candidates []models.Doctor
}

func (m *mockAvailDoctorRepo) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	if d, ok := m.doctors[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAvailDoctorRepo) ListCandidates(ctx context.Context, day, date, timeOfDay string) ([]models.Doctor, error) {
	return m.candidates, nil
}

type mockAvailScheduleRepo struct {
	specific  map[string]models.DoctorSchedule
	recurring map[string]models.DoctorSchedule
}

func (m *mockAvailScheduleRepo) FindSpecific(ctx context.Context, doctorID, date string) (*models.DoctorSchedule, error) {
	if s, ok := m.specific[doctorID+"|"+date]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAvailScheduleRepo) FindRecurring(ctx context.Context, doctorID, day string) (*models.DoctorSchedule, error) {
	if s, ok := m.recurring[doctorID+"|"+day]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockAvailApptRepo struct {
	taken map[string]bool
}

func (m *mockAvailApptRepo) ExistsActiveSlot(ctx context.Context, doctorID, date, timeOfDay string) (bool, error) {
	return m.taken[doctorID+"|"+date+"|"+timeOfDay], nil
}

func strPtr(s string) *string { return &s }

// 2026-09-14 is a Monday.
const testDate = "2026-09-14"

func newTestAvailability(doctors *mockAvailDoctorRepo, schedules *mockAvailScheduleRepo, appts *mockAvailApptRepo) *AvailabilityService {
	cache := NewCacheService(nil, nil, 0, nil, false)
	return NewAvailabilityService(doctors, schedules, appts, cache, 0, nil)
}

func availableDoctor(id string) models.Doctor {
	return models.Doctor{ID: id, UserID: "user-" + id, IsAvailable: true}
}

func recurringEntry(doctorID, day, start, end string, available bool) models.DoctorSchedule {
	return models.DoctorSchedule{
		ID:           "sched-" + doctorID,
		DoctorID:     doctorID,
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr(day),
		StartTime:    start,
		EndTime:      end,
		IsAvailable:  available,
	}
}

func TestCheckSlotHappyPath(t *testing.T) {
	svc := newTestAvailability(
		&mockAvailDoctorRepo{doctors: map[string]models.Doctor{"doc-1": availableDoctor("doc-1")}},
		&mockAvailScheduleRepo{recurring: map[string]models.DoctorSchedule{"doc-1|Monday": recurringEntry("doc-1", "Monday", "09:00", "17:00", true)}},
		&mockAvailApptRepo{},
	)

	require.NoError(t, svc.CheckSlot(context.Background(), "doc-1", testDate, "10:00"))
}

func TestCheckSlotDoctorFlagBeatsSchedule(t *testing.T) {
	doctor := availableDoctor("doc-1")
	doctor.IsAvailable = false
	svc := newTestAvailability(
		&mockAvailDoctorRepo{doctors: map[string]models.Doctor{"doc-1": doctor}},
		&mockAvailScheduleRepo{},
		&mockAvailApptRepo{},
	)

	err := svc.CheckSlot(context.Background(), "doc-1", testDate, "10:00")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDoctorUnavailable))
	assert.Equal(t, "Doctor is not available for appointments.", err.Error())
}

func TestCheckSlotNoSchedule(t *testing.T) {
	svc := newTestAvailability(
		&mockAvailDoctorRepo{doctors: map[string]models.Doctor{"doc-1": availableDoctor("doc-1")}},
		&mockAvailScheduleRepo{},
		&mockAvailApptRepo{},
	)

	err := svc.CheckSlot(context.Background(), "doc-1", testDate, "10:00")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoSchedule))
	assert.Equal(t, "Doctor has no schedule for this day.", err.Error())
}

func TestCheckSlotSpecificOverrideWins(t *testing.T) {
	off := models.DoctorSchedule{
		ID:           "sched-off",
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleSpecific,
		SpecificDate: strPtr(testDate),
		StartTime:    "09:00",
		EndTime:      "17:00",
		IsAvailable:  false,
	}
	svc := newTestAvailability(
		&mockAvailDoctorRepo{doctors: map[string]models.Doctor{"doc-1": availableDoctor("doc-1")}},
		&mockAvailScheduleRepo{
			specific:  map[string]models.DoctorSchedule{"doc-1|" + testDate: off},
			recurring: map[string]models.DoctorSchedule{"doc-1|Monday": recurringEntry("doc-1", "Monday", "09:00", "17:00", true)},
		},
		&mockAvailApptRepo{},
	)

	err := svc.CheckSlot(context.Background(), "doc-1", testDate, "10:00")
	require.Error(t, err)
	assert.Equal(t, "Doctor is not available on this day.", err.Error())
}

func TestCheckSlotWindowBoundsInclusive(t *testing.T) {
	svc := newTestAvailability(
		&mockAvailDoctorRepo{doctors: map[string]models.Doctor{"doc-1": availableDoctor("doc-1")}},
		&mockAvailScheduleRepo{recurring: map[string]models.DoctorSchedule{"doc-1|Monday": recurringEntry("doc-1", "Monday", "09:00", "17:00", true)}},
		&mockAvailApptRepo{},
	)

	require.NoError(t, svc.CheckSlot(context.Background(), "doc-1", testDate, "09:00"))
	require.NoError(t, svc.CheckSlot(context.Background(), "doc-1", testDate, "17:00"))

	err := svc.CheckSlot(context.Background(), "doc-1", testDate, "17:30")
	require.Error(t, err)
	assert.Equal(t, "Appointment time is outside doctor's working hours.", err.Error())

	err = svc.CheckSlot(context.Background(), "doc-1", testDate, "08:59")
	require.Error(t, err)
	assert.Equal(t, "Appointment time is outside doctor's working hours.", err.Error())
}

func TestCheckSlotTaken(t *testing.T) {
	svc := newTestAvailability(
		&mockAvailDoctorRepo{doctors: map[string]models.Doctor{"doc-1": availableDoctor("doc-1")}},
		&mockAvailScheduleRepo{recurring: map[string]models.DoctorSchedule{"doc-1|Monday": recurringEntry("doc-1", "Monday", "09:00", "17:00", true)}},
		&mockAvailApptRepo{taken: map[string]bool{"doc-1|" + testDate + "|10:00": true}},
	)

	err := svc.CheckSlot(context.Background(), "doc-1", testDate, "10:00")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSlotTaken))
	assert.Equal(t, "This time slot is already booked.", err.Error())
}

func TestCheckSlotUnknownDoctor(t *testing.T) {
	svc := newTestAvailability(&mockAvailDoctorRepo{}, &mockAvailScheduleRepo{}, &mockAvailApptRepo{})

	err := svc.CheckSlot(context.Background(), "doc-missing", testDate, "10:00")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAvailableDoctorsEmptyIsNotAnError(t *testing.T) {
	svc := newTestAvailability(&mockAvailDoctorRepo{}, &mockAvailScheduleRepo{}, &mockAvailApptRepo{})

	doctors, err := svc.AvailableDoctors(context.Background(), testDate, "10:00")
	require.NoError(t, err)
	assert.Empty(t, doctors)
}

func TestAvailableDoctorsRefinesCandidates(t *testing.T) {
	// doc-2 matches the weekly pattern but a specific-date override marks
	// the day off, so only doc-1 survives the per-candidate check.
	off := models.DoctorSchedule{
		ID:           "sched-off",
		DoctorID:     "doc-2",
		ScheduleType: models.ScheduleSpecific,
		SpecificDate: strPtr(testDate),
		StartTime:    "09:00",
		EndTime:      "17:00",
		IsAvailable:  false,
	}
	svc := newTestAvailability(
		&mockAvailDoctorRepo{
			doctors: map[string]models.Doctor{
				"doc-1": availableDoctor("doc-1"),
				"doc-2": availableDoctor("doc-2"),
			},
			candidates: []models.Doctor{availableDoctor("doc-1"), availableDoctor("doc-2")},
		},
		&mockAvailScheduleRepo{
			specific: map[string]models.DoctorSchedule{"doc-2|" + testDate: off},
			recurring: map[string]models.DoctorSchedule{
				"doc-1|Monday": recurringEntry("doc-1", "Monday", "09:00", "17:00", true),
				"doc-2|Monday": recurringEntry("doc-2", "Monday", "09:00", "17:00", true),
			},
		},
		&mockAvailApptRepo{},
	)

	doctors, err := svc.AvailableDoctors(context.Background(), testDate, "10:00")
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "doc-1", doctors[0].ID)
}

func TestAvailableDoctorsRejectsBadInputs(t *testing.T) {
	svc := newTestAvailability(&mockAvailDoctorRepo{}, &mockAvailScheduleRepo{}, &mockAvailApptRepo{})

	_, err := svc.AvailableDoctors(context.Background(), "14-09-2026", "10:00")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.AvailableDoctors(context.Background(), testDate, "10pm")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAvailableDoctorsPadsQueryInputs(t *testing.T) {
	doctors := &mockAvailDoctorRepo{
		doctors:    map[string]models.Doctor{"doc-1": availableDoctor("doc-1")},
		candidates: []models.Doctor{availableDoctor("doc-1")},
	}
	schedules := &mockAvailScheduleRepo{recurring: map[string]models.DoctorSchedule{
		"doc-1|Monday": recurringEntry("doc-1", "Monday", "09:00", "17:00", true),
	}}
	svc := newTestAvailability(doctors, schedules, &mockAvailApptRepo{})

	// "2026-9-14" and "9:30" parse but would fail every string
	// comparison against the padded stored values.
	available, err := svc.AvailableDoctors(context.Background(), "2026-9-14", "9:30")
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "doc-1", available[0].ID)
}
