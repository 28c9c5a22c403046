package models

import "time"

// ScheduleType distinguishes weekly patterns from one-off date overrides.
type ScheduleType string

const (
	ScheduleRecurring ScheduleType = "recurring"
	ScheduleSpecific  ScheduleType = "specific"
)

// Layouts for the date and time strings carried through the API and stored
// in text columns. Both orderings are chronological under plain string
// comparison, which the availability window and uniqueness checks rely on.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ValidDay reports whether the value is a full English weekday name.
func ValidDay(day string) bool {
	switch day {
	case "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday":
		return true
	}
	return false
}

// DayName derives the weekday name from a DateLayout string.
func DayName(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	return t.Weekday().String(), nil
}

// CanonicalDate reparses a DateLayout string and returns it zero padded.
// time.Parse accepts one-digit fields, so "2026-9-14" passes validation;
// string comparison and slot uniqueness only hold on the padded form.
func CanonicalDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// CanonicalTime reparses a TimeLayout string and returns it zero padded.
func CanonicalTime(timeOfDay string) (string, error) {
	t, err := time.Parse(TimeLayout, timeOfDay)
	if err != nil {
		return "", err
	}
	return t.Format(TimeLayout), nil
}

// DoctorSchedule is one availability entry for a doctor: either a recurring
// weekly window keyed by day name, or a specific-date override. Exactly one
// of Day and SpecificDate is set, matching ScheduleType.
type DoctorSchedule struct {
	ID           string       `db:"id" json:"id"`
	DoctorID     string       `db:"doctor_id" json:"doctor_id"`
	ScheduleType ScheduleType `db:"schedule_type" json:"schedule_type"`
	Day          *string      `db:"day" json:"day,omitempty"`
	SpecificDate *string      `db:"specific_date" json:"specific_date,omitempty"`
	StartTime    string       `db:"start_time" json:"start_time"`
	EndTime      string       `db:"end_time" json:"end_time"`
	IsAvailable  bool         `db:"is_available" json:"is_available"`
	Notes        *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Covers reports whether t (TimeLayout) falls inside the entry's window.
// Both bounds are inclusive.
func (s *DoctorSchedule) Covers(t string) bool {
	return s.StartTime <= t && t <= s.EndTime
}

// ScheduleCreateRequest adds an availability entry for a doctor.
type ScheduleCreateRequest struct {
	DoctorID     string       `json:"doctor_id" validate:"required"`
	ScheduleType ScheduleType `json:"schedule_type" validate:"required,oneof=recurring specific"`
	Day          *string      `json:"day,omitempty"`
	SpecificDate *string      `json:"specific_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartTime    string       `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string       `json:"end_time" validate:"required,datetime=15:04"`
	IsAvailable  *bool        `json:"is_available,omitempty"`
	Notes        *string      `json:"notes,omitempty"`
}

// ScheduleUpdateRequest edits window and availability of an entry. The
// entry's type and keying day or date are immutable.
type ScheduleUpdateRequest struct {
	StartTime   *string `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime     *string `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
	IsAvailable *bool   `json:"is_available,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}
