package models

import "time"

// Patient is the requester profile linked one-to-one with a user account.
type Patient struct {
	ID                   string    `db:"id" json:"id"`
	UserID               string    `db:"user_id" json:"user_id"`
	MedicalHistory       *string   `db:"medical_history" json:"medical_history,omitempty"`
	Allergies            *string   `db:"allergies" json:"allergies,omitempty"`
	EmergencyContact     *string   `db:"emergency_contact" json:"emergency_contact,omitempty"`
	EmergencyContactName *string   `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	BloodType            *string   `db:"blood_type" json:"blood_type,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// PatientDetail pairs the profile with its user record.
type PatientDetail struct {
	Patient
	User *User `json:"user,omitempty"`
}

// PatientUpdateRequest edits a patient's medical profile.
type PatientUpdateRequest struct {
	MedicalHistory       *string `json:"medical_history,omitempty"`
	Allergies            *string `json:"allergies,omitempty"`
	EmergencyContact     *string `json:"emergency_contact,omitempty"`
	EmergencyContactName *string `json:"emergency_contact_name,omitempty"`
	BloodType            *string `json:"blood_type,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}
