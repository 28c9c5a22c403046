package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicbook/clinic-api/internal/models"
)

const patientColumns = "id, user_id, medical_history, allergies, emergency_contact, emergency_contact_name, blood_type, created_at, updated_at"

// PatientRepository provides database access for patient profiles.
type PatientRepository struct {
	db *sqlx.DB
}

// NewPatientRepository creates a new patient repository.
func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// FindByID loads a patient by identifier.
func (r *PatientRepository) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE id = $1`, patientColumns)
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, err
	}
	return &patient, nil
}

// FindByUserID loads the patient profile linked to a user account.
func (r *PatientRepository) FindByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE user_id = $1`, patientColumns)
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, userID); err != nil {
		return nil, err
	}
	return &patient, nil
}

// Create stores a new patient profile.
func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	patient.UpdatedAt = now

	const query = `INSERT INTO patients (id, user_id, medical_history, allergies, emergency_contact, emergency_contact_name, blood_type, created_at, updated_at) VALUES (:id, :user_id, :medical_history, :allergies, :emergency_contact, :emergency_contact_name, :blood_type, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

// Update modifies a patient profile.
func (r *PatientRepository) Update(ctx context.Context, patient *models.Patient) error {
	patient.UpdatedAt = time.Now().UTC()
	const query = `UPDATE patients SET medical_history = :medical_history, allergies = :allergies, emergency_contact = :emergency_contact, emergency_contact_name = :emergency_contact_name, blood_type = :blood_type, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}
