package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCustomID(ctx context.Context, customID string) (*Patient, error)
	GetByContact(ctx context.Context, contact string) (*Patient, error)
	SetOTP(ctx context.Context, id uuid.UUID, otp string, expiry time.Time) error
	// ConsumeOTP clears a matching unexpired code, assigns customID when the
	// patient has none and records the login. It returns the stored customId,
	// or ErrInvalidOTP when the code does not match.
	ConsumeOTP(ctx context.Context, id uuid.UUID, otp, customID string, at time.Time) (string, error)
	UpdateProfile(ctx context.Context, p *Patient) error
	SetTreatment(ctx context.Context, id uuid.UUID, diagnosis string, doctorID uuid.UUID) error
	ReplaceMedications(ctx context.Context, id uuid.UUID, meds []*Medication) error
	ListMedications(ctx context.Context, id uuid.UUID) ([]*Medication, error)
	AddLabReport(ctx context.Context, r *LabReport) error
	ListLabReports(ctx context.Context, id uuid.UUID) ([]*LabReport, error)
	UpdateBilling(ctx context.Context, id uuid.UUID, b Billing) error
	AppendHistory(ctx context.Context, e *HistoryEntry) error
	ListHistory(ctx context.Context, id uuid.UUID) ([]*HistoryEntry, error)
}
