package models

import "time"

// Clinic represents a medical facility doctors belong to.
type Clinic struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Address     string    `db:"address" json:"address"`
	Phone       string    `db:"phone" json:"phone"`
	Email       string    `db:"email" json:"email"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClinicCreateRequest registers a new clinic.
type ClinicCreateRequest struct {
	Name        string  `json:"name" validate:"required"`
	Address     string  `json:"address" validate:"required"`
	Phone       string  `json:"phone" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Description *string `json:"description,omitempty"`
}

// ClinicUpdateRequest edits an existing clinic.
type ClinicUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Address     *string `json:"address,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"is_active,omitempty"`
}
