package models

import "time"

// AppointmentStatus is the booking lifecycle state.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// ValidStatus reports whether the value is a known lifecycle state.
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether the status ends the appointment lifecycle.
// Only pending and confirmed appointments occupy a slot.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// AppointmentCreateRequest books a slot with a doctor. The patient is
// derived from the authenticated user.
type AppointmentCreateRequest struct {
	DoctorID        string `json:"doctor" validate:"required"`
	AppointmentDate string `json:"appointment_date" validate:"required,datetime=2006-01-02"`
	AppointmentTime string `json:"appointment_time" validate:"required,datetime=15:04"`
	Reason          string `json:"reason" validate:"required"`
}

// AppointmentStatusRequest transitions a booking's lifecycle state.
// Notes left out of the request keep whatever is stored; sending
// "notes": "" overwrites the stored notes with an empty string.
type AppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" validate:"required"`
	Notes  *string           `json:"notes,omitempty"`
}

// Appointment is a booking joining a patient and a doctor at a slot.
// Appointments are never hard-deleted; cancellation is a status change.
type Appointment struct {
	ID              string            `db:"id" json:"id"`
	PatientID       string            `db:"patient_id" json:"patient_id"`
	DoctorID        string            `db:"doctor_id" json:"doctor_id"`
	AppointmentDate string            `db:"appointment_date" json:"appointment_date"`
	AppointmentTime string            `db:"appointment_time" json:"appointment_time"`
	Reason          string            `db:"reason" json:"reason"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}
