package models

import "time"

// Doctor is the provider profile linked one-to-one with a user account.
type Doctor struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ClinicID        string    `db:"clinic_id" json:"clinic_id"`
	Specialization  string    `db:"specialization" json:"specialization"`
	LicenseNumber   string    `db:"license_number" json:"license_number"`
	ExperienceYears int       `db:"experience_years" json:"experience_years"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	Bio             *string   `db:"bio" json:"bio,omitempty"`
	IsAvailable     bool      `db:"is_available" json:"is_available"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// DoctorDetail aggregates a doctor with related records for API responses.
type DoctorDetail struct {
	Doctor
	User      *User            `json:"user,omitempty"`
	Clinic    *Clinic          `json:"clinic,omitempty"`
	Schedules []DoctorSchedule `json:"schedules,omitempty"`
}

// DoctorFilter narrows doctor listings.
type DoctorFilter struct {
	Specialization string
	OnlyAvailable  bool
}

// DoctorUpdateRequest edits a doctor's professional profile.
type DoctorUpdateRequest struct {
	Specialization  *string  `json:"specialization,omitempty"`
	ClinicID        *string  `json:"clinic,omitempty"`
	ExperienceYears *int     `json:"experience_years,omitempty" validate:"omitempty,min=0"`
	ConsultationFee *float64 `json:"consultation_fee,omitempty" validate:"omitempty,min=0"`
	Bio             *string  `json:"bio,omitempty"`
	IsAvailable     *bool    `json:"is_available,omitempty"`
}
