package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinic-api/internal/models"
)

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func appointmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "appointment_date", "appointment_time", "reason", "status", "notes", "created_at", "updated_at"})
}

func TestAppointmentRepositoryCreateExecDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(sqlmock.AnyArg(), "pat-1", "doc-1", "2026-09-15", "10:00", "checkup", string(models.StatusPending), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appt := &models.Appointment{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: "2026-09-15",
		AppointmentTime: "10:00",
		Reason:          "checkup",
	}
	err := repo.CreateExec(context.Background(), db, appt)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.NotEmpty(t, appt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCreateExecSlotCollision(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateExec(context.Background(), db, &models.Appointment{
		PatientID:       "pat-2",
		DoctorID:        "doc-1",
		AppointmentDate: "2026-09-15",
		AppointmentTime: "10:00",
		Reason:          "followup",
	})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListByDoctorDate(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	rows := appointmentRows().
		AddRow("appt-1", "pat-1", "doc-1", "2026-09-15", "09:30", "checkup", string(models.StatusConfirmed), nil, time.Now(), time.Now()).
		AddRow("appt-2", "pat-2", "doc-1", "2026-09-15", "11:00", "followup", string(models.StatusPending), nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .+ FROM appointments WHERE doctor_id = \\$1 AND appointment_date = \\$2 ORDER BY appointment_time ASC").
		WithArgs("doc-1", "2026-09-15").
		WillReturnRows(rows)

	list, err := repo.ListByDoctorDate(context.Background(), "doc-1", "2026-09-15")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "09:30", list[0].AppointmentTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryExistsActiveSlot(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("doc-1", "2026-09-15", "10:00", activeStatuses).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.ExistsActiveSlot(context.Background(), "doc-1", "2026-09-15", "10:00")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCountActiveOnDates(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	dates := []string{"2026-09-07", "2026-09-14", "2026-09-21"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND appointment_date = ANY($2) AND status = ANY($3)")).
		WithArgs("doc-1", pq.Array(dates), activeStatuses).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActiveOnDates(context.Background(), db, "doc-1", dates)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCountActiveOnDatesEmpty(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	count, err := repo.CountActiveOnDates(context.Background(), db, "doc-1", nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	notes := "patient rescheduled"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET status = $2, notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1")).
		WithArgs("appt-1", string(models.StatusCancelled), &notes, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.UpdateStatus(context.Background(), "appt-1", models.StatusCancelled, &notes)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateStatusNotes(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	query := regexp.QuoteMeta("UPDATE appointments SET status = $2, notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1")

	// Absent notes bind NULL and COALESCE keeps the stored value.
	mock.ExpectExec(query).
		WithArgs("appt-1", string(models.StatusConfirmed), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "appt-1", models.StatusConfirmed, nil))

	// An empty string is a real value and clears the stored notes.
	empty := ""
	mock.ExpectExec(query).
		WithArgs("appt-1", string(models.StatusConfirmed), &empty, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "appt-1", models.StatusConfirmed, &empty))

	assert.NoError(t, mock.ExpectationsWereMet())
}
