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

type doctorRepository interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, error)
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Doctor, error)
	Update(ctx context.Context, doctor *models.Doctor) error
}

type doctorUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type doctorClinicRepository interface {
	FindByID(ctx context.Context, id string) (*models.Clinic, error)
}

type doctorScheduleRepository interface {
	ListByDoctor(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error)
}

// DoctorService exposes doctor directory and profile operations.
type DoctorService struct {
	doctors   doctorRepository
	users     doctorUserRepository
	clinics   doctorClinicRepository
	schedules doctorScheduleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDoctorService constructs a DoctorService.
func NewDoctorService(doctors doctorRepository, users doctorUserRepository, clinics doctorClinicRepository, schedules doctorScheduleRepository, validate *validator.Validate, logger *zap.Logger) *DoctorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DoctorService{doctors: doctors, users: users, clinics: clinics, schedules: schedules, validator: validate, logger: logger}
}

// List returns doctors matching the filter.
func (s *DoctorService) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, error) {
	doctors, err := s.doctors.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list doctors")
	}
	return doctors, nil
}

// Get returns a doctor with their user, clinic, and schedule entries.
func (s *DoctorService) Get(ctx context.Context, id string) (*models.DoctorDetail, error) {
	doctor, err := s.doctors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}

	detail := &models.DoctorDetail{Doctor: *doctor}

	if user, err := s.users.FindByID(ctx, doctor.UserID); err == nil {
		detail.User = user
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to load doctor user", zap.String("doctor_id", id), zap.Error(err))
	}
	if clinic, err := s.clinics.FindByID(ctx, doctor.ClinicID); err == nil {
		detail.Clinic = clinic
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to load doctor clinic", zap.String("doctor_id", id), zap.Error(err))
	}
	if schedules, err := s.schedules.ListByDoctor(ctx, doctor.ID); err == nil {
		detail.Schedules = schedules
	} else {
		s.logger.Warn("failed to load doctor schedules", zap.String("doctor_id", id), zap.Error(err))
	}

	return detail, nil
}

// GetByUser returns the doctor profile linked to a user account.
func (s *DoctorService) GetByUser(ctx context.Context, userID string) (*models.Doctor, error) {
	doctor, err := s.doctors.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no doctor profile exists for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor profile")
	}
	return doctor, nil
}

// Update edits a doctor's professional profile. Doctors may only edit their
// own profile; admins may edit any.
func (s *DoctorService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.DoctorUpdateRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	doctor, err := s.doctors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	if actor.Role != models.RoleAdmin && actor.UserID != doctor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only edit your own profile")
	}

	if req.ClinicID != nil {
		if _, err := s.clinics.FindByID(ctx, *req.ClinicID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "clinic not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinic")
		}
		doctor.ClinicID = *req.ClinicID
	}
	if req.Specialization != nil {
		doctor.Specialization = *req.Specialization
	}
	if req.ExperienceYears != nil {
		doctor.ExperienceYears = *req.ExperienceYears
	}
	if req.ConsultationFee != nil {
		doctor.ConsultationFee = *req.ConsultationFee
	}
	if req.Bio != nil {
		doctor.Bio = req.Bio
	}
	if req.IsAvailable != nil {
		doctor.IsAvailable = *req.IsAvailable
	}

	if err := s.doctors.Update(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update doctor")
	}
	return doctor, nil
}
