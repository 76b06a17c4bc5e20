package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	// HasActive reports whether a non-cancelled appointment exists for the
	// pair with scheduled_at in [from, to).
	HasActive(ctx context.Context, doctorID, patientID uuid.UUID, from, to time.Time) (bool, error)
	// LockBooking serializes bookings for the pair and day until the
	// surrounding transaction ends.
	LockBooking(ctx context.Context, doctorID, patientID uuid.UUID, day time.Time) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorView, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientView, error)
}
