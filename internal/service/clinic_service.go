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

type clinicRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Clinic, error)
	FindByID(ctx context.Context, id string) (*models.Clinic, error)
	Create(ctx context.Context, clinic *models.Clinic) error
	Update(ctx context.Context, clinic *models.Clinic) error
	Delete(ctx context.Context, id string) error
}

// ClinicService exposes clinic directory operations.
type ClinicService struct {
	clinics   clinicRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClinicService constructs a ClinicService.
func NewClinicService(clinics clinicRepository, validate *validator.Validate, logger *zap.Logger) *ClinicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClinicService{clinics: clinics, validator: validate, logger: logger}
}

// List returns clinics; non-admin callers only see active ones.
func (s *ClinicService) List(ctx context.Context, includeInactive bool) ([]models.Clinic, error) {
	clinics, err := s.clinics.List(ctx, !includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clinics")
	}
	return clinics, nil
}

// Get returns one clinic.
func (s *ClinicService) Get(ctx context.Context, id string) (*models.Clinic, error) {
	clinic, err := s.clinics.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clinic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinic")
	}
	return clinic, nil
}

// Create registers a new clinic.
func (s *ClinicService) Create(ctx context.Context, req models.ClinicCreateRequest) (*models.Clinic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clinic payload")
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	clinic := &models.Clinic{
		Name:        req.Name,
		Address:     req.Address,
		Phone:       phone,
		Email:       req.Email,
		Description: req.Description,
		Active:      true,
	}
	if err := s.clinics.Create(ctx, clinic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clinic")
	}
	return clinic, nil
}

// Update edits an existing clinic.
func (s *ClinicService) Update(ctx context.Context, id string, req models.ClinicUpdateRequest) (*models.Clinic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clinic payload")
	}

	clinic, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		clinic.Name = *req.Name
	}
	if req.Address != nil {
		clinic.Address = *req.Address
	}
	if req.Phone != nil {
		phone, err := NormalizePhone(*req.Phone)
		if err != nil {
			return nil, err
		}
		clinic.Phone = phone
	}
	if req.Email != nil {
		clinic.Email = *req.Email
	}
	if req.Description != nil {
		clinic.Description = req.Description
	}
	if req.Active != nil {
		clinic.Active = *req.Active
	}

	if err := s.clinics.Update(ctx, clinic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update clinic")
	}
	return clinic, nil
}

// Delete removes a clinic.
func (s *ClinicService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.clinics.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete clinic")
	}
	return nil
}
