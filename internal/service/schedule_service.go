package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinicbook/clinic-api/internal/authz"
	"github.com/clinicbook/clinic-api/internal/models"
	"github.com/clinicbook/clinic-api/internal/repository"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

type scheduleRepository interface {
	ListByDoctor(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error)
	FindByID(ctx context.Context, id string) (*models.DoctorSchedule, error)
	FindRecurring(ctx context.Context, doctorID, day string) (*models.DoctorSchedule, error)
	FindSpecific(ctx context.Context, doctorID, date string) (*models.DoctorSchedule, error)
	Create(ctx context.Context, schedule *models.DoctorSchedule) error
	Update(ctx context.Context, schedule *models.DoctorSchedule) error
	DeleteExec(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type scheduleAppointmentRepository interface {
	CountActiveOnDates(ctx context.Context, exec sqlx.ExtContext, doctorID string, dates []string) (int, error)
}

type scheduleDoctorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// ScheduleService manages doctor availability entries and their lifecycle.
type ScheduleService struct {
	schedules    scheduleRepository
	appointments scheduleAppointmentRepository
	doctors      scheduleDoctorRepository
	availability *AvailabilityService
	tx           txProvider
	validator    *validator.Validate
	logger       *zap.Logger

	// lookaheadDays bounds the dependency scan when deleting a recurring
	// entry; appointments beyond the horizon do not block deletion.
	lookaheadDays int
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(schedules scheduleRepository, appointments scheduleAppointmentRepository, doctors scheduleDoctorRepository, availability *AvailabilityService, tx txProvider, validate *validator.Validate, logger *zap.Logger, lookaheadDays int) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if lookaheadDays <= 0 {
		lookaheadDays = 30
	}
	return &ScheduleService{
		schedules:     schedules,
		appointments:  appointments,
		doctors:       doctors,
		availability:  availability,
		tx:            tx,
		validator:     validate,
		logger:        logger,
		lookaheadDays: lookaheadDays,
	}
}

// ListForDoctor returns a doctor's schedule entries.
func (s *ScheduleService) ListForDoctor(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error) {
	if _, err := s.doctors.FindByID(ctx, doctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	entries, err := s.schedules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return entries, nil
}

// Create validates and stores a new schedule entry. At most one recurring
// entry per (doctor, day) and one specific entry per (doctor, date) may
// exist.
func (s *ScheduleService) Create(ctx context.Context, actor *models.JWTClaims, req models.ScheduleCreateRequest) (*models.DoctorSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	// Window bounds and dates are compared as strings everywhere, so pad
	// them before any check or storage.
	startTime, err := models.CanonicalTime(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be formatted as HH:MM")
	}
	endTime, err := models.CanonicalTime(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be formatted as HH:MM")
	}
	req.StartTime = startTime
	req.EndTime = endTime
	if req.SpecificDate != nil {
		specificDate, err := models.CanonicalDate(*req.SpecificDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "specific_date must be formatted as YYYY-MM-DD")
		}
		req.SpecificDate = &specificDate
	}

	doctor, err := s.doctors.FindByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	if err := authz.ManageSchedule(actor, doctor.UserID); err != nil {
		return nil, err
	}

	if err := validateScheduleShape(req); err != nil {
		return nil, err
	}

	switch req.ScheduleType {
	case models.ScheduleRecurring:
		if _, err := s.schedules.FindRecurring(ctx, req.DoctorID, *req.Day); err == nil {
			return nil, appErrors.ErrScheduleExists
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing schedule")
		}
	case models.ScheduleSpecific:
		if _, err := s.schedules.FindSpecific(ctx, req.DoctorID, *req.SpecificDate); err == nil {
			return nil, appErrors.ErrScheduleExists
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing schedule")
		}
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	entry := &models.DoctorSchedule{
		DoctorID:     req.DoctorID,
		ScheduleType: req.ScheduleType,
		Day:          req.Day,
		SpecificDate: req.SpecificDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		IsAvailable:  available,
		Notes:        req.Notes,
	}
	if err := s.schedules.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.ErrScheduleExists
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}

	s.invalidateFor(ctx, entry)
	return entry, nil
}

// Update edits the window, availability flag, or notes of an entry.
func (s *ScheduleService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.ScheduleUpdateRequest) (*models.DoctorSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	entry, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.StartTime != nil {
		startTime, err := models.CanonicalTime(*req.StartTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be formatted as HH:MM")
		}
		entry.StartTime = startTime
	}
	if req.EndTime != nil {
		endTime, err := models.CanonicalTime(*req.EndTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be formatted as HH:MM")
		}
		entry.EndTime = endTime
	}
	if entry.StartTime >= entry.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	if req.IsAvailable != nil {
		entry.IsAvailable = *req.IsAvailable
	}
	if req.Notes != nil {
		entry.Notes = req.Notes
	}

	if err := s.schedules.Update(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}

	s.invalidateFor(ctx, entry)
	return entry, nil
}

// Delete removes an entry unless upcoming pending or confirmed appointments
// still depend on it. The dependency scan and the delete run in one
// transaction so a booking cannot slip in between them.
func (s *ScheduleService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	entry, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}

	dates, err := s.dependentDates(entry)
	if err != nil {
		return err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback()

	count, err := s.appointments.CountActiveOnDates(ctx, tx, entry.DoctorID, dates)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check dependent appointments")
	}
	if count > 0 {
		return appErrors.ErrScheduleInUse
	}

	if err := s.schedules.DeleteExec(ctx, tx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}

	s.invalidateFor(ctx, entry)
	return nil
}

// dependentDates lists the upcoming dates an entry keeps bookable: the one
// date for a specific entry, or every matching weekday inside the lookahead
// horizon for a recurring one.
func (s *ScheduleService) dependentDates(entry *models.DoctorSchedule) ([]string, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	if entry.ScheduleType == models.ScheduleSpecific {
		if entry.SpecificDate == nil {
			return nil, appErrors.Clone(appErrors.ErrInternal, "specific schedule entry missing its date")
		}
		if *entry.SpecificDate < today.Format(models.DateLayout) {
			return nil, nil
		}
		return []string{*entry.SpecificDate}, nil
	}

	if entry.Day == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "recurring schedule entry missing its day")
	}
	var dates []string
	for i := 0; i <= s.lookaheadDays; i++ {
		d := today.AddDate(0, 0, i)
		if d.Weekday().String() == *entry.Day {
			dates = append(dates, d.Format(models.DateLayout))
		}
	}
	return dates, nil
}

func (s *ScheduleService) loadOwned(ctx context.Context, actor *models.JWTClaims, id string) (*models.DoctorSchedule, error) {
	entry, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	doctor, err := s.doctors.FindByID(ctx, entry.DoctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	if err := authz.ManageSchedule(actor, doctor.UserID); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ScheduleService) invalidateFor(ctx context.Context, entry *models.DoctorSchedule) {
	if s.availability == nil {
		return
	}
	if entry.ScheduleType == models.ScheduleSpecific && entry.SpecificDate != nil {
		s.availability.InvalidateSlot(ctx, *entry.SpecificDate)
		return
	}
	s.availability.InvalidateAll(ctx)
}

func validateScheduleShape(req models.ScheduleCreateRequest) error {
	switch req.ScheduleType {
	case models.ScheduleRecurring:
		if req.Day == nil || req.SpecificDate != nil {
			return appErrors.Clone(appErrors.ErrValidation, "recurring entries require day and must not set specific_date")
		}
		if !models.ValidDay(*req.Day) {
			return appErrors.Clone(appErrors.ErrValidation, "day must be a full English weekday name")
		}
	case models.ScheduleSpecific:
		if req.SpecificDate == nil || req.Day != nil {
			return appErrors.Clone(appErrors.ErrValidation, "specific entries require specific_date and must not set day")
		}
	}
	if req.StartTime >= req.EndTime {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}
