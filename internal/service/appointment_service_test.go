package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinic-api/internal/models"
	"github.com/clinicbook/clinic-api/internal/repository"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

type mockApptRepo struct {
	appts     map[string]models.Appointment
	createErr error
	created   *models.Appointment
	statuses  map[string]models.AppointmentStatus
}

func (m *mockApptRepo) CreateExec(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.appts == nil {
		m.appts = make(map[string]models.Appointment)
	}
	if appt.ID == "" {
		appt.ID = "new-appt"
	}
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}
	m.appts[appt.ID] = *appt
	m.created = appt
	return nil
}

func (m *mockApptRepo) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	if a, ok := m.appts[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApptRepo) ListAll(ctx context.Context) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, a := range m.appts {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockApptRepo) ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockApptRepo) ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockApptRepo) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, notes *string) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.AppointmentStatus)
	}
	m.statuses[id] = status
	if a, ok := m.appts[id]; ok {
		a.Status = status
		m.appts[id] = a
	}
	return nil
}

type mockApptPatientRepo struct {
	patients map[string]models.Patient
}

func (m *mockApptPatientRepo) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	for _, p := range m.patients {
		if p.ID == id {
			patient := p
			return &patient, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockApptPatientRepo) FindByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	if p, ok := m.patients[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

type mockApptDoctorRepo struct {
	doctors map[string]models.Doctor
}

func (m *mockApptDoctorRepo) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	for _, d := range m.doctors {
		if d.ID == id {
			doctor := d
			return &doctor, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockApptDoctorRepo) FindByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	if d, ok := m.doctors[userID]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

type apptFixture struct {
	appts     *mockApptRepo
	patients  *mockApptPatientRepo
	doctors   *mockApptDoctorRepo
	schedules *mockAvailScheduleRepo
	slots     *mockAvailApptRepo
}

func newApptFixture() *apptFixture {
	return &apptFixture{
		appts: &mockApptRepo{},
		patients: &mockApptPatientRepo{patients: map[string]models.Patient{
			"user-pat-1": {ID: "pat-1", UserID: "user-pat-1"},
		}},
		doctors: &mockApptDoctorRepo{doctors: map[string]models.Doctor{
			"user-doc-1": {ID: "doc-1", UserID: "user-doc-1", IsAvailable: true},
		}},
		schedules: &mockAvailScheduleRepo{recurring: map[string]models.DoctorSchedule{
			"doc-1|Monday": recurringEntry("doc-1", "Monday", "09:00", "17:00", true),
		}},
		slots: &mockAvailApptRepo{},
	}
}

func (f *apptFixture) service(tx txProvider) *AppointmentService {
	availDoctors := &mockAvailDoctorRepo{doctors: map[string]models.Doctor{}}
	for _, d := range f.doctors.doctors {
		availDoctors.doctors[d.ID] = d
	}
	availability := newTestAvailability(availDoctors, f.schedules, f.slots)
	return NewAppointmentService(f.appts, f.patients, f.doctors, availability, tx, nil, nil, nil)
}

func patientClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-pat-1", Role: models.RolePatient, Username: "pat"}
}

func newApptTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAppointmentCreate(t *testing.T) {
	db, mock, cleanup := newApptTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	f := newApptFixture()
	svc := f.service(db)

	appt, err := svc.Create(context.Background(), patientClaims(), models.AppointmentCreateRequest{
		DoctorID:        "doc-1",
		AppointmentDate: testDate,
		AppointmentTime: "10:00",
		Reason:          "checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, "pat-1", appt.PatientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCreateSlotAlreadyBooked(t *testing.T) {
	f := newApptFixture()
	f.slots.taken = map[string]bool{"doc-1|" + testDate + "|10:00": true}
	svc := f.service(nil)

	_, err := svc.Create(context.Background(), patientClaims(), models.AppointmentCreateRequest{
		DoctorID:        "doc-1",
		AppointmentDate: testDate,
		AppointmentTime: "10:00",
		Reason:          "checkup",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSlotTaken))
	assert.Nil(t, f.appts.created)
}

func TestAppointmentCreateRaceLosesToUniqueIndex(t *testing.T) {
	db, mock, cleanup := newApptTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	f := newApptFixture()
	f.appts.createErr = repository.ErrUniqueViolation
	svc := f.service(db)

	_, err := svc.Create(context.Background(), patientClaims(), models.AppointmentCreateRequest{
		DoctorID:        "doc-1",
		AppointmentDate: testDate,
		AppointmentTime: "10:00",
		Reason:          "checkup",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSlotTaken))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCreateRequiresPatientProfile(t *testing.T) {
	f := newApptFixture()
	f.patients.patients = map[string]models.Patient{}
	svc := f.service(nil)

	_, err := svc.Create(context.Background(), patientClaims(), models.AppointmentCreateRequest{
		DoctorID:        "doc-1",
		AppointmentDate: testDate,
		AppointmentTime: "10:00",
		Reason:          "checkup",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "no patient profile")
}

func TestAppointmentListScopedByRole(t *testing.T) {
	f := newApptFixture()
	f.appts.appts = map[string]models.Appointment{
		"a1": {ID: "a1", PatientID: "pat-1", DoctorID: "doc-1"},
		"a2": {ID: "a2", PatientID: "pat-2", DoctorID: "doc-2"},
	}
	svc := f.service(nil)

	mine, err := svc.ListForUser(context.Background(), patientClaims())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "a1", mine[0].ID)

	doctorActor := &models.JWTClaims{UserID: "user-doc-1", Role: models.RoleDoctor}
	byDoctor, err := svc.ListForUser(context.Background(), doctorActor)
	require.NoError(t, err)
	require.Len(t, byDoctor, 1)
	assert.Equal(t, "a1", byDoctor[0].ID)

	all, err := svc.ListForUser(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAppointmentPatientMayOnlyCancel(t *testing.T) {
	f := newApptFixture()
	f.appts.appts = map[string]models.Appointment{
		"a1": {ID: "a1", PatientID: "pat-1", DoctorID: "doc-1", AppointmentDate: testDate, Status: models.StatusPending},
	}
	svc := f.service(nil)

	_, err := svc.UpdateStatus(context.Background(), patientClaims(), "a1", models.AppointmentStatusRequest{Status: models.StatusConfirmed})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	appt, err := svc.UpdateStatus(context.Background(), patientClaims(), "a1", models.AppointmentStatusRequest{Status: models.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, appt.Status)
}

func TestAppointmentTerminalStatusIsImmutable(t *testing.T) {
	f := newApptFixture()
	f.appts.appts = map[string]models.Appointment{
		"a1": {ID: "a1", PatientID: "pat-1", DoctorID: "doc-1", AppointmentDate: testDate, Status: models.StatusCompleted},
	}
	svc := f.service(nil)

	_, err := svc.UpdateStatus(context.Background(), adminClaims(), "a1", models.AppointmentStatusRequest{Status: models.StatusConfirmed})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAppointmentFinal))
}

func TestAppointmentDoctorManagesOwnLifecycle(t *testing.T) {
	f := newApptFixture()
	f.appts.appts = map[string]models.Appointment{
		"a1": {ID: "a1", PatientID: "pat-1", DoctorID: "doc-1", AppointmentDate: testDate, Status: models.StatusPending},
	}
	svc := f.service(nil)

	doctorActor := &models.JWTClaims{UserID: "user-doc-1", Role: models.RoleDoctor}
	appt, err := svc.UpdateStatus(context.Background(), doctorActor, "a1", models.AppointmentStatusRequest{Status: models.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, appt.Status)

	otherDoctor := &models.JWTClaims{UserID: "user-doc-9", Role: models.RoleDoctor}
	_, err = svc.UpdateStatus(context.Background(), otherDoctor, "a1", models.AppointmentStatusRequest{Status: models.StatusCancelled})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAppointmentCreatePadsTimeBeforeBooking(t *testing.T) {
	db, mock, cleanup := newApptTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	f := newApptFixture()
	svc := f.service(db)

	appt, err := svc.Create(context.Background(), patientClaims(), models.AppointmentCreateRequest{
		DoctorID:        "doc-1",
		AppointmentDate: testDate,
		AppointmentTime: "9:30",
		Reason:          "checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, "09:30", appt.AppointmentTime)
	assert.Equal(t, testDate, appt.AppointmentDate)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The slot is now held under its padded key, so an unpadded retry
	// must resolve to the same slot and be refused.
	f.slots.taken = map[string]bool{"doc-1|" + testDate + "|09:30": true}
	_, err = svc.Create(context.Background(), patientClaims(), models.AppointmentCreateRequest{
		DoctorID:        "doc-1",
		AppointmentDate: testDate,
		AppointmentTime: "9:30",
		Reason:          "checkup",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSlotTaken))
}
