package repository

import (
	"context"
	"database/sql"
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

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func scheduleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "doctor_id", "schedule_type", "day", "specific_date", "start_time", "end_time", "is_available", "notes", "created_at", "updated_at"})
}

func TestScheduleRepositoryListByDoctor(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := scheduleRows().
		AddRow("sched-1", "doc-1", string(models.ScheduleRecurring), "Monday", nil, "09:00", "17:00", true, nil, time.Now(), time.Now()).
		AddRow("sched-2", "doc-1", string(models.ScheduleSpecific), nil, "2026-09-15", "10:00", "14:00", true, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .+ FROM doctor_schedules WHERE doctor_id = \\$1 ORDER BY").
		WithArgs("doc-1").
		WillReturnRows(rows)

	list, err := repo.ListByDoctor(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, models.ScheduleRecurring, list[0].ScheduleType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryFindRecurring(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	day := "Tuesday"
	rows := scheduleRows().
		AddRow("sched-1", "doc-1", string(models.ScheduleRecurring), day, nil, "09:00", "17:00", true, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("schedule_type = 'recurring' AND day = $2")).
		WithArgs("doc-1", day).
		WillReturnRows(rows)

	sched, err := repo.FindRecurring(context.Background(), "doc-1", day)
	require.NoError(t, err)
	require.NotNil(t, sched.Day)
	assert.Equal(t, day, *sched.Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryFindSpecificNoRows(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("schedule_type = 'specific' AND specific_date = $2")).
		WithArgs("doc-1", "2026-09-15").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindSpecific(context.Background(), "doc-1", "2026-09-15")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	day := "Monday"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO doctor_schedules")).
		WithArgs(sqlmock.AnyArg(), "doc-1", string(models.ScheduleRecurring), &day, nil, "09:00", "17:00", true, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sched := &models.DoctorSchedule{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          &day,
		StartTime:    "09:00",
		EndTime:      "17:00",
		IsAvailable:  true,
	}
	err := repo.Create(context.Background(), sched)
	require.NoError(t, err)
	assert.NotEmpty(t, sched.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO doctor_schedules")).
		WillReturnError(&pq.Error{Code: "23505"})

	day := "Monday"
	err := repo.Create(context.Background(), &models.DoctorSchedule{
		DoctorID:     "doc-1",
		ScheduleType: models.ScheduleRecurring,
		Day:          &day,
		StartTime:    "09:00",
		EndTime:      "17:00",
	})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryDeleteExecWithinTx(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM doctor_schedules WHERE id = $1")).
		WithArgs("sched-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteExec(context.Background(), tx, "sched-1"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
