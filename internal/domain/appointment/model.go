package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("appointment not found")
	ErrInvalidDate          = errors.New("invalid date format")
	ErrPastDate             = errors.New("appointment date is in the past")
	ErrOutsideBusinessHours = errors.New("appointment outside business hours")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrConflict             = errors.New("appointment already booked for this day")
	ErrCancelled            = errors.New("appointment is cancelled")
)

// IST is the fixed UTC+05:30 zone the booking rules are evaluated in.
var IST = time.FixedZone("IST", 5*60*60+30*60)

const (
	OpeningHour = 9
	ClosingHour = 21
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

type Appointment struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctorId"`
	PatientID    uuid.UUID `json:"patientId"`
	ScheduledAt  time.Time `json:"date"`
	Status       Status    `json:"status"`
	Prescription string    `json:"prescription"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type PatientSummary struct {
	Name   string  `json:"name"`
	Age    *int    `json:"age,omitempty"`
	Gender *string `json:"gender,omitempty"`
}

type DoctorSummary struct {
	Username       string  `json:"username"`
	Specialization *string `json:"specialization,omitempty"`
}

// DoctorView is an appointment as listed for a doctor.
type DoctorView struct {
	Appointment
	Patient PatientSummary `json:"patient"`
}

// PatientView is an appointment as listed for a patient.
type PatientView struct {
	Appointment
	Doctor DoctorSummary `json:"doctor"`
}

type BookInput struct {
	DoctorID  string `json:"doctorId"`
	PatientID string `json:"patientId"`
	Date      string `json:"date"`
}

// Booked is the result of a successful booking. ISTTime carries the slot
// rendered in IST.
type Booked struct {
	Appointment
	ISTTime string `json:"istTime"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps and the common offset-less forms.
// Offset-less values are read as IST wall-clock time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for i, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, IST)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// ValidateSlot enforces that t is not before now and falls within opening
// hours in IST.
func ValidateSlot(t, now time.Time) error {
	if t.Before(now) {
		return ErrPastDate
	}
	if h := t.In(IST).Hour(); h < OpeningHour || h >= ClosingHour {
		return ErrOutsideBusinessHours
	}
	return nil
}

// ClockIST formats t as H:MM in IST.
func ClockIST(t time.Time) string {
	ist := t.In(IST)
	return fmt.Sprintf("%d:%02d", ist.Hour(), ist.Minute())
}

// DayBounds returns the calendar day containing t in loc as [start, end).
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
