package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicbook/clinic-api/internal/models"
)

const doctorColumns = "id, user_id, clinic_id, specialization, license_number, experience_years, consultation_fee, bio, is_available, created_at, updated_at"

// DoctorRepository provides database access for doctor profiles.
type DoctorRepository struct {
	db *sqlx.DB
}

// NewDoctorRepository creates a new doctor repository.
func NewDoctorRepository(db *sqlx.DB) *DoctorRepository {
	return &DoctorRepository{db: db}
}

// List returns doctors filtered by specialization and availability.
func (r *DoctorRepository) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, error) {
	base := fmt.Sprintf("SELECT %s FROM doctors WHERE 1=1", doctorColumns)
	var conditions []string
	var args []interface{}

	if filter.OnlyAvailable {
		conditions = append(conditions, "is_available = TRUE")
	}
	if filter.Specialization != "" {
		conditions = append(conditions, fmt.Sprintf("specialization = $%d", len(args)+1))
		args = append(args, filter.Specialization)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY specialization ASC, created_at ASC"

	var doctors []models.Doctor
	if err := r.db.SelectContext(ctx, &doctors, base, args...); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// FindByID loads a doctor by identifier.
func (r *DoctorRepository) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	query := fmt.Sprintf(`SELECT %s FROM doctors WHERE id = $1`, doctorColumns)
	var doctor models.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		return nil, err
	}
	return &doctor, nil
}

// FindByUserID loads the doctor profile linked to a user account.
func (r *DoctorRepository) FindByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	query := fmt.Sprintf(`SELECT %s FROM doctors WHERE user_id = $1`, doctorColumns)
	var doctor models.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, userID); err != nil {
		return nil, err
	}
	return &doctor, nil
}

// ListCandidates returns doctors who could take an appointment at the given
// slot: globally available, holding an available schedule entry whose window
// covers the time on that day (weekly or exact-date), and not already booked
// with an active appointment at the slot. Specific-date precedence is
// resolved by the caller against each candidate.
func (r *DoctorRepository) ListCandidates(ctx context.Context, day, date, timeOfDay string) ([]models.Doctor, error) {
	query := fmt.Sprintf(`SELECT DISTINCT d.%s FROM doctors d
		JOIN doctor_schedules s ON s.doctor_id = d.id
		WHERE d.is_available = TRUE
		  AND s.is_available = TRUE
		  AND s.start_time <= $1 AND s.end_time >= $1
		  AND ((s.schedule_type = 'recurring' AND s.day = $2) OR (s.schedule_type = 'specific' AND s.specific_date = $3))
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.doctor_id = d.id AND a.appointment_date = $3 AND a.appointment_time = $1 AND a.status = ANY($4)
		  )
		ORDER BY d.specialization ASC, d.created_at ASC`, strings.ReplaceAll(doctorColumns, ", ", ", d."))
	var doctors []models.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query, timeOfDay, day, date, activeStatuses); err != nil {
		return nil, fmt.Errorf("list candidate doctors: %w", err)
	}
	return doctors, nil
}

// Create stores a new doctor profile.
func (r *DoctorRepository) Create(ctx context.Context, doctor *models.Doctor) error {
	if doctor.ID == "" {
		doctor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doctor.CreatedAt.IsZero() {
		doctor.CreatedAt = now
	}
	doctor.UpdatedAt = now

	const query = `INSERT INTO doctors (id, user_id, clinic_id, specialization, license_number, experience_years, consultation_fee, bio, is_available, created_at, updated_at) VALUES (:id, :user_id, :clinic_id, :specialization, :license_number, :experience_years, :consultation_fee, :bio, :is_available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doctor); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("create doctor: %w", err)
	}
	return nil
}

// Update modifies a doctor profile.
func (r *DoctorRepository) Update(ctx context.Context, doctor *models.Doctor) error {
	doctor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE doctors SET clinic_id = :clinic_id, specialization = :specialization, experience_years = :experience_years, consultation_fee = :consultation_fee, bio = :bio, is_available = :is_available, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doctor); err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}
