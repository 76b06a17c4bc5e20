package inbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
)

var ErrNotFound = errors.New("notification not found")

// OwnerKind distinguishes staff accounts from patients; both own a mailbox.
type OwnerKind string

const (
	OwnerAccount OwnerKind = "account"
	OwnerPatient OwnerKind = "patient"
)

type Owner struct {
	Kind OwnerKind
	ID   uuid.UUID
}

func AccountOwner(id uuid.UUID) Owner { return Owner{Kind: OwnerAccount, ID: id} }
func PatientOwner(id uuid.UUID) Owner { return Owner{Kind: OwnerPatient, ID: id} }

// OwnerFromClaims resolves the mailbox of the authenticated caller.
func OwnerFromClaims(c *auth.Claims) (Owner, error) {
	if c == nil {
		return Owner{}, fmt.Errorf("missing claims")
	}
	id, err := c.SubjectID()
	if err != nil {
		return Owner{}, fmt.Errorf("invalid subject: %w", err)
	}
	if c.IsPatient() {
		return PatientOwner(id), nil
	}
	return AccountOwner(id), nil
}

type Kind string

const (
	KindGeneral      Kind = "general"
	KindAppointment  Kind = "appointment"
	KindPrescription Kind = "prescription"
)

// Entry is one message in an owner's mailbox.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	Owner         Owner      `json:"-"`
	Message       string     `json:"message"`
	Kind          Kind       `json:"type"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	Read          bool       `json:"read"`
	CreatedAt     time.Time  `json:"timestamp"`
	Seq           int64      `json:"-"`
}
