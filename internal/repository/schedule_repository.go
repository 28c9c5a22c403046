package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicbook/clinic-api/internal/models"
)

const scheduleColumns = "id, doctor_id, schedule_type, day, specific_date, start_time, end_time, is_available, notes, created_at, updated_at"

// ScheduleRepository provides persistence for doctor availability entries.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListByDoctor returns a doctor's entries in stable order: recurring entries
// by day, then specific-date entries by date.
func (r *ScheduleRepository) ListByDoctor(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM doctor_schedules WHERE doctor_id = $1 ORDER BY schedule_type ASC, day ASC NULLS LAST, specific_date ASC NULLS LAST, start_time ASC`, scheduleColumns)
	var schedules []models.DoctorSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, doctorID); err != nil {
		return nil, fmt.Errorf("list schedules by doctor: %w", err)
	}
	return schedules, nil
}

// FindByID loads a schedule entry by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.DoctorSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM doctor_schedules WHERE id = $1`, scheduleColumns)
	var sched models.DoctorSchedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// FindRecurring returns the doctor's weekly entry for the given day name.
// sql.ErrNoRows is passed through when no entry exists.
func (r *ScheduleRepository) FindRecurring(ctx context.Context, doctorID, day string) (*models.DoctorSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM doctor_schedules WHERE doctor_id = $1 AND schedule_type = 'recurring' AND day = $2`, scheduleColumns)
	var sched models.DoctorSchedule
	if err := r.db.GetContext(ctx, &sched, query, doctorID, day); err != nil {
		return nil, err
	}
	return &sched, nil
}

// FindSpecific returns the doctor's override entry for the exact date.
// sql.ErrNoRows is passed through when no entry exists.
func (r *ScheduleRepository) FindSpecific(ctx context.Context, doctorID, date string) (*models.DoctorSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM doctor_schedules WHERE doctor_id = $1 AND schedule_type = 'specific' AND specific_date = $2`, scheduleColumns)
	var sched models.DoctorSchedule
	if err := r.db.GetContext(ctx, &sched, query, doctorID, date); err != nil {
		return nil, err
	}
	return &sched, nil
}

// Create stores a new schedule entry. Collisions with the per-doctor
// uniqueness constraints surface as ErrUniqueViolation.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.DoctorSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO doctor_schedules (id, doctor_id, schedule_type, day, specific_date, start_time, end_time, is_available, notes, created_at, updated_at) VALUES (:id, :doctor_id, :schedule_type, :day, :specific_date, :start_time, :end_time, :is_available, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update modifies a schedule entry.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.DoctorSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE doctor_schedules SET schedule_type = :schedule_type, day = :day, specific_date = :specific_date, start_time = :start_time, end_time = :end_time, is_available = :is_available, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// DeleteExec removes an entry using the provided executor so the caller can
// scope the dependency check and the delete to one transaction.
func (r *ScheduleRepository) DeleteExec(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM doctor_schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
