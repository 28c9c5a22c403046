package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinicbook/clinic-api/internal/authz"
	"github.com/clinicbook/clinic-api/internal/models"
	"github.com/clinicbook/clinic-api/internal/repository"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

type appointmentRepository interface {
	CreateExec(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	ListAll(ctx context.Context) ([]models.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, notes *string) error
}

type appointmentPatientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	FindByUserID(ctx context.Context, userID string) (*models.Patient, error)
}

type appointmentDoctorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Doctor, error)
}

// AppointmentService manages the booking lifecycle.
type AppointmentService struct {
	appointments appointmentRepository
	patients     appointmentPatientRepository
	doctors      appointmentDoctorRepository
	availability *AvailabilityService
	tx           txProvider
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewAppointmentService constructs an AppointmentService.
func NewAppointmentService(appointments appointmentRepository, patients appointmentPatientRepository, doctors appointmentDoctorRepository, availability *AvailabilityService, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AppointmentService{
		appointments: appointments,
		patients:     patients,
		doctors:      doctors,
		availability: availability,
		tx:           tx,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// Create books a slot for the authenticated patient. The availability check
// and the insert run in one transaction; the partial unique index backs the
// check up, so a concurrent booking of the same slot fails cleanly instead
// of double-booking.
func (s *AppointmentService) Create(ctx context.Context, actor *models.JWTClaims, req models.AppointmentCreateRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	// Inputs are stored and compared as strings, so pad them first or
	// "9:30" and "09:30" would count as different slots.
	date, err := models.CanonicalDate(req.AppointmentDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment_date must be formatted as YYYY-MM-DD")
	}
	timeOfDay, err := models.CanonicalTime(req.AppointmentTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment_time must be formatted as HH:MM")
	}
	req.AppointmentDate = date
	req.AppointmentTime = timeOfDay

	patient, err := s.patients.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no patient profile exists for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient profile")
	}

	if err := s.availability.CheckSlot(ctx, req.DoctorID, req.AppointmentDate, req.AppointmentTime); err != nil {
		s.recordBookingFailure(err)
		return nil, err
	}

	appt := &models.Appointment{
		PatientID:       patient.ID,
		DoctorID:        req.DoctorID,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		Reason:          req.Reason,
		Status:          models.StatusPending,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := s.appointments.CreateExec(ctx, tx, appt); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			s.metrics.RecordBooking(BookingOutcomeSlotTaken)
			return nil, appErrors.ErrSlotTaken
		}
		s.metrics.RecordBooking(BookingOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}

	s.metrics.RecordBooking(BookingOutcomeCreated)
	s.availability.InvalidateSlot(ctx, appt.AppointmentDate)
	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("doctor_id", appt.DoctorID),
		zap.String("date", appt.AppointmentDate),
		zap.String("time", appt.AppointmentTime))
	return appt, nil
}

// ListForUser returns the appointments visible to the actor: admins see all,
// doctors see their own calendar, patients see their own bookings.
func (s *AppointmentService) ListForUser(ctx context.Context, actor *models.JWTClaims) ([]models.Appointment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin:
		appts, err := s.appointments.ListAll(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
		}
		return appts, nil
	case models.RoleDoctor:
		doctor, err := s.doctors.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "no doctor profile exists for this account")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor profile")
		}
		appts, err := s.appointments.ListByDoctor(ctx, doctor.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
		}
		return appts, nil
	default:
		patient, err := s.patients.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "no patient profile exists for this account")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient profile")
		}
		appts, err := s.appointments.ListByPatient(ctx, patient.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
		}
		return appts, nil
	}
}

// Get returns one appointment if the actor is a party to it or an admin.
func (s *AppointmentService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Appointment, error) {
	appt, patientUserID, doctorUserID, err := s.loadWithParties(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.ViewAppointment(actor, patientUserID, doctorUserID); err != nil {
		return nil, err
	}
	return appt, nil
}

// UpdateStatus transitions an appointment's lifecycle state. Terminal
// appointments are immutable.
func (s *AppointmentService) UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, req models.AppointmentStatusRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown appointment status")
	}

	appt, patientUserID, doctorUserID, err := s.loadWithParties(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.TransitionAppointment(actor, patientUserID, doctorUserID, req.Status); err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		return nil, appErrors.ErrAppointmentFinal
	}

	if err := s.appointments.UpdateStatus(ctx, id, req.Status, req.Notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}
	appt.Status = req.Status
	if req.Notes != nil {
		appt.Notes = req.Notes
	}

	// Moving into a terminal state frees the slot.
	if req.Status.Terminal() {
		s.availability.InvalidateSlot(ctx, appt.AppointmentDate)
	}
	return appt, nil
}

func (s *AppointmentService) loadWithParties(ctx context.Context, id string) (*models.Appointment, string, string, error) {
	appt, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	patient, err := s.patients.FindByID(ctx, appt.PatientID)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	doctor, err := s.doctors.FindByID(ctx, appt.DoctorID)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	return appt, patient.UserID, doctor.UserID, nil
}

func (s *AppointmentService) recordBookingFailure(err error) {
	switch {
	case appErrors.Is(err, appErrors.ErrSlotTaken):
		s.metrics.RecordBooking(BookingOutcomeSlotTaken)
	case appErrors.Is(err, appErrors.ErrNoSchedule):
		s.metrics.RecordBooking(BookingOutcomeNoSchedule)
	case appErrors.Is(err, appErrors.ErrDoctorUnavailable):
		s.metrics.RecordBooking(BookingOutcomeUnavailable)
	default:
		s.metrics.RecordBooking(BookingOutcomeError)
	}
}
