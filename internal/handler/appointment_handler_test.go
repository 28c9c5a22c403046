package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinic-api/internal/middleware"
	"github.com/clinicbook/clinic-api/internal/models"
	"github.com/clinicbook/clinic-api/internal/service"
)

// testDate is a Monday.
const testDate = "2026-09-14"

type fakeApptRepo struct {
	byID map[string]*models.Appointment
	seq  int
}

func newFakeApptRepo() *fakeApptRepo {
	return &fakeApptRepo{byID: map[string]*models.Appointment{}}
}

func (f *fakeApptRepo) CreateExec(_ context.Context, _ sqlx.ExtContext, appt *models.Appointment) error {
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}
	f.seq++
	appt.ID = fmt.Sprintf("appt-%d", f.seq)
	clone := *appt
	f.byID[appt.ID] = &clone
	return nil
}

func (f *fakeApptRepo) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	appt, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return appt, nil
}

func (f *fakeApptRepo) ListAll(context.Context) ([]models.Appointment, error) { return nil, nil }

func (f *fakeApptRepo) ListByDoctor(context.Context, string) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) ListByPatient(context.Context, string) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) UpdateStatus(_ context.Context, id string, status models.AppointmentStatus, notes *string) error {
	appt, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	appt.Status = status
	if notes != nil {
		appt.Notes = notes
	}
	return nil
}

func (f *fakeApptRepo) ExistsActiveSlot(_ context.Context, doctorID, date, timeOfDay string) (bool, error) {
	for _, appt := range f.byID {
		if appt.DoctorID == doctorID && appt.AppointmentDate == date && appt.AppointmentTime == timeOfDay && !appt.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

type fakePatientRepo struct {
	patient *models.Patient
}

func (f *fakePatientRepo) FindByID(_ context.Context, id string) (*models.Patient, error) {
	if f.patient != nil && f.patient.ID == id {
		return f.patient, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePatientRepo) FindByUserID(_ context.Context, userID string) (*models.Patient, error) {
	if f.patient != nil && f.patient.UserID == userID {
		return f.patient, nil
	}
	return nil, sql.ErrNoRows
}

type fakeDoctorRepo struct {
	doctor     *models.Doctor
	candidates []models.Doctor
}

func (f *fakeDoctorRepo) FindByID(_ context.Context, id string) (*models.Doctor, error) {
	if f.doctor != nil && f.doctor.ID == id {
		return f.doctor, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDoctorRepo) FindByUserID(_ context.Context, userID string) (*models.Doctor, error) {
	if f.doctor != nil && f.doctor.UserID == userID {
		return f.doctor, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDoctorRepo) ListCandidates(context.Context, string, string, string) ([]models.Doctor, error) {
	return f.candidates, nil
}

type fakeScheduleRepo struct {
	recurring map[string]*models.DoctorSchedule
}

func (f *fakeScheduleRepo) FindRecurring(_ context.Context, doctorID, day string) (*models.DoctorSchedule, error) {
	entry, ok := f.recurring[doctorID+"|"+day]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return entry, nil
}

func (f *fakeScheduleRepo) FindSpecific(context.Context, string, string) (*models.DoctorSchedule, error) {
	return nil, sql.ErrNoRows
}

type bookingEnv struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
}

func newBookingEnv(t *testing.T) *bookingEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	day := "Monday"
	doctors := &fakeDoctorRepo{doctor: &models.Doctor{ID: "doc-1", UserID: "user-doc-1", IsAvailable: true}}
	schedules := &fakeScheduleRepo{recurring: map[string]*models.DoctorSchedule{
		"doc-1|Monday": {ID: "sch-1", DoctorID: "doc-1", ScheduleType: models.ScheduleRecurring, Day: &day, StartTime: "09:00", EndTime: "17:00", IsAvailable: true},
	}}
	appts := newFakeApptRepo()
	patients := &fakePatientRepo{patient: &models.Patient{ID: "pat-1", UserID: "user-pat-1"}}

	cache := service.NewCacheService(nil, nil, 0, nil, false)
	availability := service.NewAvailabilityService(doctors, schedules, appts, cache, 0, nil)
	apptSvc := service.NewAppointmentService(appts, patients, doctors, availability, db, nil, nil, nil)

	apptHandler := NewAppointmentHandler(apptSvc)
	doctorHandler := NewDoctorHandler(nil, availability)

	router := gin.New()
	authed := router.Group("/", func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-pat-1", Role: models.RolePatient, Username: "pat"})
	})
	authed.POST("/appointments", apptHandler.Create)
	router.GET("/doctors/available", doctorHandler.Available)

	return &bookingEnv{router: router, mock: mock}
}

func bookingPayload(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(models.AppointmentCreateRequest{
		DoctorID:        "doc-1",
		AppointmentDate: testDate,
		AppointmentTime: "10:00",
		Reason:          "checkup",
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestBookingEndpointDoubleBookReturns400(t *testing.T) {
	env := newBookingEnv(t)
	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/appointments", bookingPayload(t))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data models.Appointment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "pat-1", created.Data.PatientID)
	assert.Equal(t, models.StatusPending, created.Data.Status)

	// Same slot again fails before any transaction is opened.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/appointments", bookingPayload(t))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var failed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, "This time slot is already booked.", failed.Error.Message)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestAvailableDoctorsEmptyListIs200(t *testing.T) {
	env := newBookingEnv(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/doctors/available?date="+testDate+"&time=03:00", nil)
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Data []models.Doctor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

func TestAvailableDoctorsRequiresQueryParams(t *testing.T) {
	env := newBookingEnv(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/doctors/available?date="+testDate, nil)
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
