// Package authz centralises per-resource permission decisions so handlers
// and services share one set of rules.
package authz

import (
	"github.com/clinicbook/clinic-api/internal/models"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

// ManageSchedule allows admins and the owning doctor to mutate a doctor's
// schedule entries. ownerUserID is the user id behind the doctor profile.
func ManageSchedule(actor *models.JWTClaims, ownerUserID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleDoctor:
		if actor.UserID == ownerUserID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you can only manage your own schedule")
}

// ViewAppointment allows the booking patient, the treating doctor, and
// admins to read an appointment.
func ViewAppointment(actor *models.JWTClaims, patientUserID, doctorUserID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleAdmin || actor.UserID == patientUserID || actor.UserID == doctorUserID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this appointment")
}

// TransitionAppointment decides whether the actor may move an appointment
// into the target status. Patients may only cancel their own bookings;
// doctors manage the full lifecycle of their own appointments; admins may
// do anything.
func TransitionAppointment(actor *models.JWTClaims, patientUserID, doctorUserID string, target models.AppointmentStatus) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RolePatient:
		if actor.UserID == patientUserID && target == models.StatusCancelled {
			return nil
		}
	case models.RoleDoctor:
		if actor.UserID == doctorUserID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you are not allowed to change this appointment")
}

// RequestExport allows admins and the treating doctor to export a day sheet.
func RequestExport(actor *models.JWTClaims, doctorUserID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleAdmin || (actor.Role == models.RoleDoctor && actor.UserID == doctorUserID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you can only export your own day sheet")
}
