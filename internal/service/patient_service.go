package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/clinicbook/clinic-api/internal/models"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

type patientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	FindByUserID(ctx context.Context, userID string) (*models.Patient, error)
	Update(ctx context.Context, patient *models.Patient) error
}

type patientUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// PatientService exposes patient profile operations.
type PatientService struct {
	patients  patientRepository
	users     patientUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPatientService constructs a PatientService.
func NewPatientService(patients patientRepository, users patientUserRepository, validate *validator.Validate, logger *zap.Logger) *PatientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PatientService{patients: patients, users: users, validator: validate, logger: logger}
}

// Get returns a patient with their user record. Patients may only view
// their own profile; doctors and admins may view any.
func (s *PatientService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.PatientDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	patient, err := s.patients.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	if actor.Role == models.RolePatient && actor.UserID != patient.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your own profile")
	}

	detail := &models.PatientDetail{Patient: *patient}
	if user, err := s.users.FindByID(ctx, patient.UserID); err == nil {
		detail.User = user
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to load patient user", zap.String("patient_id", id), zap.Error(err))
	}
	return detail, nil
}

// GetByUser returns the patient profile linked to a user account.
func (s *PatientService) GetByUser(ctx context.Context, userID string) (*models.Patient, error) {
	patient, err := s.patients.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no patient profile exists for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient profile")
	}
	return patient, nil
}

// Update edits the medical profile. Patients edit their own profile; admins
// may edit any.
func (s *PatientService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.PatientUpdateRequest) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	patient, err := s.patients.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	if actor.Role != models.RoleAdmin && actor.UserID != patient.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only edit your own profile")
	}

	if req.MedicalHistory != nil {
		patient.MedicalHistory = req.MedicalHistory
	}
	if req.Allergies != nil {
		patient.Allergies = req.Allergies
	}
	if req.EmergencyContact != nil {
		normalized, err := NormalizePhone(*req.EmergencyContact)
		if err != nil {
			return nil, err
		}
		patient.EmergencyContact = &normalized
	}
	if req.EmergencyContactName != nil {
		patient.EmergencyContactName = req.EmergencyContactName
	}
	if req.BloodType != nil {
		patient.BloodType = req.BloodType
	}

	if err := s.patients.Update(ctx, patient); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update patient")
	}
	return patient, nil
}
