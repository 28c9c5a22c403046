package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinic-api/internal/models"
	"github.com/clinicbook/clinic-api/internal/repository"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

type mockScheduleRepo struct {
	entries   map[string]models.DoctorSchedule
	createErr error
	created   *models.DoctorSchedule
	deleted   []string
}

func (m *mockScheduleRepo) ListByDoctor(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error) {
	var out []models.DoctorSchedule
	for _, e := range m.entries {
		if e.DoctorID == doctorID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id string) (*models.DoctorSchedule, error) {
	if e, ok := m.entries[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleRepo) FindRecurring(ctx context.Context, doctorID, day string) (*models.DoctorSchedule, error) {
	for _, e := range m.entries {
		if e.DoctorID == doctorID && e.ScheduleType == models.ScheduleRecurring && e.Day != nil && *e.Day == day {
			entry := e
			return &entry, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleRepo) FindSpecific(ctx context.Context, doctorID, date string) (*models.DoctorSchedule, error) {
	for _, e := range m.entries {
		if e.DoctorID == doctorID && e.ScheduleType == models.ScheduleSpecific && e.SpecificDate != nil && *e.SpecificDate == date {
			entry := e
			return &entry, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleRepo) Create(ctx context.Context, schedule *models.DoctorSchedule) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.entries == nil {
		m.entries = make(map[string]models.DoctorSchedule)
	}
	if schedule.ID == "" {
		schedule.ID = "new-sched"
	}
	m.entries[schedule.ID] = *schedule
	m.created = schedule
	return nil
}

func (m *mockScheduleRepo) Update(ctx context.Context, schedule *models.DoctorSchedule) error {
	m.entries[schedule.ID] = *schedule
	return nil
}

func (m *mockScheduleRepo) DeleteExec(ctx context.Context, exec sqlx.ExtContext, id string) error {
	delete(m.entries, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockScheduleApptRepo struct {
	count        int
	scannedDates []string
}

func (m *mockScheduleApptRepo) CountActiveOnDates(ctx context.Context, exec sqlx.ExtContext, doctorID string, dates []string) (int, error) {
	m.scannedDates = dates
	if len(dates) == 0 {
		return 0, nil
	}
	return m.count, nil
}

type mockScheduleDoctorRepo struct {
	doctors map[string]models.Doctor
}

func (m *mockScheduleDoctorRepo) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	if d, ok := m.doctors[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func newScheduleTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, Username: "admin"}
}

func newTestScheduleService(schedules *mockScheduleRepo, appts *mockScheduleApptRepo, doctors *mockScheduleDoctorRepo, tx txProvider, lookahead int) *ScheduleService {
	return NewScheduleService(schedules, appts, doctors, nil, tx, nil, nil, lookahead)
}

func TestScheduleCreateRejectsMixedShape(t *testing.T) {
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(&mockScheduleRepo{}, &mockScheduleApptRepo{}, doctors, nil, 0)

	_, err := svc.Create(context.Background(), adminClaims(), models.ScheduleCreateRequest{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr("Monday"),
		SpecificDate: strPtr("2026-09-14"),
		StartTime:    "09:00",
		EndTime:      "17:00",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestScheduleCreateRejectsInvalidDay(t *testing.T) {
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(&mockScheduleRepo{}, &mockScheduleApptRepo{}, doctors, nil, 0)

	_, err := svc.Create(context.Background(), adminClaims(), models.ScheduleCreateRequest{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr("monday"),
		StartTime:    "09:00",
		EndTime:      "17:00",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weekday")
}

func TestScheduleCreateRejectsInvertedWindow(t *testing.T) {
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(&mockScheduleRepo{}, &mockScheduleApptRepo{}, doctors, nil, 0)

	_, err := svc.Create(context.Background(), adminClaims(), models.ScheduleCreateRequest{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr("Monday"),
		StartTime:    "17:00",
		EndTime:      "09:00",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_time must be before end_time")
}

func TestScheduleCreateDuplicateDay(t *testing.T) {
	existing := models.DoctorSchedule{
		ID:           "sched-1",
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr("Monday"),
		StartTime:    "09:00",
		EndTime:      "17:00",
	}
	schedules := &mockScheduleRepo{entries: map[string]models.DoctorSchedule{"sched-1": existing}}
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(schedules, &mockScheduleApptRepo{}, doctors, nil, 0)

	_, err := svc.Create(context.Background(), adminClaims(), models.ScheduleCreateRequest{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr("Monday"),
		StartTime:    "10:00",
		EndTime:      "12:00",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleExists))
}

func TestScheduleCreateMapsUniqueViolation(t *testing.T) {
	schedules := &mockScheduleRepo{createErr: repository.ErrUniqueViolation}
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(schedules, &mockScheduleApptRepo{}, doctors, nil, 0)

	_, err := svc.Create(context.Background(), adminClaims(), models.ScheduleCreateRequest{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr("Monday"),
		StartTime:    "09:00",
		EndTime:      "17:00",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleExists))
}

func TestScheduleCreateForbiddenForOtherDoctor(t *testing.T) {
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(&mockScheduleRepo{}, &mockScheduleApptRepo{}, doctors, nil, 0)

	actor := &models.JWTClaims{UserID: "user-doc-2", Role: models.RoleDoctor}
	_, err := svc.Create(context.Background(), actor, models.ScheduleCreateRequest{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr("Monday"),
		StartTime:    "09:00",
		EndTime:      "17:00",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestScheduleDeleteBlockedByUpcomingAppointments(t *testing.T) {
	db, mock, cleanup := newScheduleTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	futureDate := time.Now().UTC().AddDate(0, 0, 3).Format(models.DateLayout)
	entry := models.DoctorSchedule{
		ID:           "sched-1",
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleSpecific,
		SpecificDate: &futureDate,
		StartTime:    "09:00",
		EndTime:      "17:00",
	}
	schedules := &mockScheduleRepo{entries: map[string]models.DoctorSchedule{"sched-1": entry}}
	appts := &mockScheduleApptRepo{count: 2}
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(schedules, appts, doctors, db, 0)

	err := svc.Delete(context.Background(), adminClaims(), "sched-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleInUse))
	assert.Equal(t, []string{futureDate}, appts.scannedDates)
	assert.Empty(t, schedules.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleDeleteRecurringScansHorizonWeekdays(t *testing.T) {
	db, mock, cleanup := newScheduleTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	day := time.Now().UTC().AddDate(0, 0, 2).Weekday().String()
	entry := models.DoctorSchedule{
		ID:           "sched-1",
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          &day,
		StartTime:    "09:00",
		EndTime:      "17:00",
	}
	schedules := &mockScheduleRepo{entries: map[string]models.DoctorSchedule{"sched-1": entry}}
	appts := &mockScheduleApptRepo{}
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(schedules, appts, doctors, db, 14)

	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "sched-1"))
	require.NotEmpty(t, appts.scannedDates)
	assert.Len(t, appts.scannedDates, 2)
	for _, d := range appts.scannedDates {
		parsed, err := time.Parse(models.DateLayout, d)
		require.NoError(t, err)
		assert.Equal(t, day, parsed.Weekday().String())
	}
	assert.Equal(t, []string{"sched-1"}, schedules.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleDeletePastSpecificEntrySkipsScan(t *testing.T) {
	db, mock, cleanup := newScheduleTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	pastDate := time.Now().UTC().AddDate(0, 0, -10).Format(models.DateLayout)
	entry := models.DoctorSchedule{
		ID:           "sched-1",
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleSpecific,
		SpecificDate: &pastDate,
		StartTime:    "09:00",
		EndTime:      "17:00",
	}
	schedules := &mockScheduleRepo{entries: map[string]models.DoctorSchedule{"sched-1": entry}}
	appts := &mockScheduleApptRepo{count: 5}
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	svc := newTestScheduleService(schedules, appts, doctors, db, 0)

	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "sched-1"))
	assert.Empty(t, appts.scannedDates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleCreatePadsWindowTimes(t *testing.T) {
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	schedules := &mockScheduleRepo{}
	svc := newTestScheduleService(schedules, &mockScheduleApptRepo{}, doctors, nil, 0)

	entry, err := svc.Create(context.Background(), adminClaims(), models.ScheduleCreateRequest{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          strPtr("Monday"),
		StartTime:    "9:00",
		EndTime:      "9:45",
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00", entry.StartTime)
	assert.Equal(t, "09:45", entry.EndTime)
}

func TestScheduleUpdatePadsWindowTimes(t *testing.T) {
	doctors := &mockScheduleDoctorRepo{doctors: map[string]models.Doctor{"doc-1": {ID: "doc-1", UserID: "user-doc-1"}}}
	existing := recurringEntry("doc-1", "Monday", "09:00", "17:00", true)
	existing.ID = "sched-1"
	schedules := &mockScheduleRepo{entries: map[string]models.DoctorSchedule{"sched-1": existing}}
	svc := newTestScheduleService(schedules, &mockScheduleApptRepo{}, doctors, nil, 0)

	entry, err := svc.Update(context.Background(), adminClaims(), "sched-1", models.ScheduleUpdateRequest{
		StartTime: strPtr("8:30"),
		EndTime:   strPtr("9:45"),
	})
	require.NoError(t, err)
	assert.Equal(t, "08:30", entry.StartTime)
	assert.Equal(t, "09:45", entry.EndTime)
}
