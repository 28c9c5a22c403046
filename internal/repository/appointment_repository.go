package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinicbook/clinic-api/internal/models"
)

const appointmentColumns = "id, patient_id, doctor_id, appointment_date, appointment_time, reason, status, notes, created_at, updated_at"

// activeStatuses are the lifecycle states that occupy a slot.
var activeStatuses = pq.StringArray{string(models.StatusPending), string(models.StatusConfirmed)}

// AppointmentRepository provides persistence for bookings.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// CreateExec inserts a booking through the provided executor. The partial
// unique index on (doctor, date, time) for active statuses is the final
// double-booking guard; violations surface as ErrUniqueViolation.
func (r *AppointmentRepository) CreateExec(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	const query = `INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_time, reason, status, notes, created_at, updated_at) VALUES (:id, :patient_id, :doctor_id, :appointment_date, :appointment_time, :reason, :status, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, appt); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListAll returns every appointment, newest slots first.
func (r *AppointmentRepository) ListAll(ctx context.Context) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments ORDER BY appointment_date DESC, appointment_time DESC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// ListByDoctor returns appointments where the doctor is the provider.
func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE doctor_id = $1 ORDER BY appointment_date DESC, appointment_time DESC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, doctorID); err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

// ListByPatient returns appointments requested by the patient.
func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE patient_id = $1 ORDER BY appointment_date DESC, appointment_time DESC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, patientID); err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// ListByDoctorDate returns a doctor's appointments for one date ordered by
// time, used for day-sheet exports.
func (r *AppointmentRepository) ListByDoctorDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE doctor_id = $1 AND appointment_date = $2 ORDER BY appointment_time ASC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("list appointments by doctor and date: %w", err)
	}
	return appts, nil
}

// ExistsActiveSlot reports whether a pending or confirmed appointment
// already occupies (doctor, date, time).
func (r *AppointmentRepository) ExistsActiveSlot(ctx context.Context, doctorID, date, timeOfDay string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM appointments WHERE doctor_id = $1 AND appointment_date = $2 AND appointment_time = $3 AND status = ANY($4))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, doctorID, date, timeOfDay, activeStatuses); err != nil {
		return false, fmt.Errorf("check active slot: %w", err)
	}
	return exists, nil
}

// CountActiveOnDates counts pending/confirmed appointments for the doctor on
// any of the provided dates. Used by the schedule deletion dependency check;
// accepts an executor so it can run inside the deleting transaction.
func (r *AppointmentRepository) CountActiveOnDates(ctx context.Context, exec sqlx.ExtContext, doctorID string, dates []string) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	const query = `SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND appointment_date = ANY($2) AND status = ANY($3)`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, doctorID, pq.Array(dates), activeStatuses); err != nil {
		return 0, fmt.Errorf("count active appointments: %w", err)
	}
	return count, nil
}

// UpdateStatus persists a status transition and optional notes.
// A nil notes pointer binds SQL NULL, so COALESCE keeps the stored
// notes; an empty string is a real value and replaces them.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, notes *string) error {
	const query = `UPDATE appointments SET status = $2, notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	return nil
}
