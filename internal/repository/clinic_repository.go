package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicbook/clinic-api/internal/models"
)

const clinicColumns = "id, name, address, phone, email, description, active, created_at, updated_at"

// ClinicRepository provides database access for clinics.
type ClinicRepository struct {
	db *sqlx.DB
}

// NewClinicRepository creates a new clinic repository.
func NewClinicRepository(db *sqlx.DB) *ClinicRepository {
	return &ClinicRepository{db: db}
}

// List returns clinics, optionally restricted to active ones.
func (r *ClinicRepository) List(ctx context.Context, activeOnly bool) ([]models.Clinic, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinics`, clinicColumns)
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY name ASC"
	var clinics []models.Clinic
	if err := r.db.SelectContext(ctx, &clinics, query); err != nil {
		return nil, fmt.Errorf("list clinics: %w", err)
	}
	return clinics, nil
}

// FindByID loads a clinic by identifier.
func (r *ClinicRepository) FindByID(ctx context.Context, id string) (*models.Clinic, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinics WHERE id = $1`, clinicColumns)
	var clinic models.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, id); err != nil {
		return nil, err
	}
	return &clinic, nil
}

// Create stores a new clinic.
func (r *ClinicRepository) Create(ctx context.Context, clinic *models.Clinic) error {
	if clinic.ID == "" {
		clinic.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if clinic.CreatedAt.IsZero() {
		clinic.CreatedAt = now
	}
	clinic.UpdatedAt = now

	const query = `INSERT INTO clinics (id, name, address, phone, email, description, active, created_at, updated_at) VALUES (:id, :name, :address, :phone, :email, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, clinic); err != nil {
		return fmt.Errorf("create clinic: %w", err)
	}
	return nil
}

// Update modifies a clinic.
func (r *ClinicRepository) Update(ctx context.Context, clinic *models.Clinic) error {
	clinic.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clinics SET name = :name, address = :address, phone = :phone, email = :email, description = :description, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, clinic); err != nil {
		return fmt.Errorf("update clinic: %w", err)
	}
	return nil
}

// Delete removes a clinic by id.
func (r *ClinicRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM clinics WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete clinic: %w", err)
	}
	return nil
}
