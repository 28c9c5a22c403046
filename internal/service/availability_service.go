package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clinicbook/clinic-api/internal/models"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

type availabilityDoctorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	ListCandidates(ctx context.Context, day, date, timeOfDay string) ([]models.Doctor, error)
}

type availabilityScheduleRepository interface {
	FindRecurring(ctx context.Context, doctorID, day string) (*models.DoctorSchedule, error)
	FindSpecific(ctx context.Context, doctorID, date string) (*models.DoctorSchedule, error)
}

type availabilityAppointmentRepository interface {
	ExistsActiveSlot(ctx context.Context, doctorID, date, timeOfDay string) (bool, error)
}

// AvailabilityService answers whether a doctor can take a slot. A one-off
// entry for the exact date always wins over the weekly pattern for that
// weekday.
type AvailabilityService struct {
	doctors      availabilityDoctorRepository
	schedules    availabilityScheduleRepository
	appointments availabilityAppointmentRepository
	cache        *CacheService
	cacheTTL     time.Duration
	logger       *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(doctors availabilityDoctorRepository, schedules availabilityScheduleRepository, appointments availabilityAppointmentRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{doctors: doctors, schedules: schedules, appointments: appointments, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// CheckSlot verifies that the doctor can be booked at (date, time). Checks
// run in a fixed order so the caller always gets the most specific failure:
// doctor flag, schedule presence, day availability, window, then slot
// occupancy.
func (s *AvailabilityService) CheckSlot(ctx context.Context, doctorID, date, timeOfDay string) error {
	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	if !doctor.IsAvailable {
		return appErrors.ErrDoctorUnavailable
	}

	entry, err := s.resolveEntry(ctx, doctorID, date)
	if err != nil {
		return err
	}
	if !entry.IsAvailable {
		return appErrors.Clone(appErrors.ErrDoctorUnavailable, "Doctor is not available on this day.")
	}
	if !entry.Covers(timeOfDay) {
		return appErrors.Clone(appErrors.ErrDoctorUnavailable, "Appointment time is outside doctor's working hours.")
	}

	taken, err := s.appointments.ExistsActiveSlot(ctx, doctorID, date, timeOfDay)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot")
	}
	if taken {
		return appErrors.ErrSlotTaken
	}
	return nil
}

// AvailableDoctors returns the doctors bookable at (date, time). The SQL
// candidate query prefilters on schedule windows and slot occupancy, then
// each candidate goes through CheckSlot so a specific-date override still
// trumps a matching weekly entry. An empty result is a valid answer.
func (s *AvailabilityService) AvailableDoctors(ctx context.Context, date, timeOfDay string) ([]models.Doctor, error) {
	date, err := models.CanonicalDate(date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	timeOfDay, err = models.CanonicalTime(timeOfDay)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time must be formatted as HH:MM")
	}
	day, err := models.DayName(date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}

	cacheKey := availabilityCacheKey(date, timeOfDay)
	var cached []models.Doctor
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	candidates, err := s.doctors.ListCandidates(ctx, day, date, timeOfDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidate doctors")
	}

	available := make([]models.Doctor, 0, len(candidates))
	for _, doctor := range candidates {
		if err := s.CheckSlot(ctx, doctor.ID, date, timeOfDay); err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) {
				continue
			}
			return nil, err
		}
		available = append(available, doctor)
	}

	if err := s.cache.Set(ctx, cacheKey, available, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache availability", zap.String("key", cacheKey), zap.Error(err))
	}
	return available, nil
}

// InvalidateSlot drops cached availability answers for the given date after
// a booking or schedule mutation.
func (s *AvailabilityService) InvalidateSlot(ctx context.Context, date string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("availability:%s:*", date)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.String("date", date), zap.Error(err))
	}
}

// InvalidateAll drops every cached availability answer, used after schedule
// mutations whose affected dates are open-ended.
func (s *AvailabilityService) InvalidateAll(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "availability:*"); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}

func (s *AvailabilityService) resolveEntry(ctx context.Context, doctorID, date string) (*models.DoctorSchedule, error) {
	day, err := models.DayName(date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}

	entry, err := s.schedules.FindSpecific(ctx, doctorID, date)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	entry, err = s.schedules.FindRecurring(ctx, doctorID, day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoSchedule
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return entry, nil
}

func availabilityCacheKey(date, timeOfDay string) string {
	return fmt.Sprintf("availability:%s:%s", date, timeOfDay)
}
