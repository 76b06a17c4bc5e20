package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/staff"
	"github.com/hms/hms/internal/platform/db"
)

type Doctors interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*staff.Account, error)
}

type Patients interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Inbox appends mailbox entries. Satisfied by *inbox.Service.
type Inbox interface {
	Append(ctx context.Context, owner inbox.Owner, message string, kind inbox.Kind, appointmentID *uuid.UUID) (*inbox.Entry, error)
}

type Service struct {
	repo     Repository
	tx       db.Runner
	doctors  Doctors
	patients Patients
	inbox    Inbox
	dayLoc   *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService builds the appointment service. dayLoc sets the calendar day
// used by the one-appointment-per-day rule.
func NewService(repo Repository, tx db.Runner, doctors Doctors, patients Patients, in Inbox, dayLoc *time.Location, logger zerolog.Logger) *Service {
	if dayLoc == nil {
		dayLoc = time.Local
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		doctors:  doctors,
		patients: patients,
		inbox:    in,
		dayLoc:   dayLoc,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Book(ctx context.Context, in BookInput) (*Booked, error) {
	at, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	if err := ValidateSlot(at, s.now()); err != nil {
		return nil, err
	}

	doctorID, err := uuid.Parse(in.DoctorID)
	if err != nil {
		return nil, ErrDoctorNotFound
	}
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		return nil, ErrPatientNotFound
	}

	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	pat, err := s.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	appt := &Appointment{DoctorID: doc.ID, PatientID: pat.ID, ScheduledAt: at, Status: StatusScheduled}
	from, to := DayBounds(at, s.dayLoc)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockBooking(ctx, doc.ID, pat.ID, from); err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}
		taken, err := s.repo.HasActive(ctx, doc.ID, pat.ID, from, to)
		if err != nil {
			return fmt.Errorf("check conflict: %w", err)
		}
		if taken {
			return ErrConflict
		}
		return s.repo.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	clock := ClockIST(at)
	s.post(ctx, inbox.AccountOwner(doc.ID), fmt.Sprintf("New appointment with %s at %s", pat.Name, clock), appt.ID)
	s.post(ctx, inbox.PatientOwner(pat.ID), fmt.Sprintf("Appointment booked with Dr. %s at %s", doc.Username, clock), appt.ID)

	return &Booked{Appointment: *appt, ISTTime: at.In(IST).Format(time.RFC3339)}, nil
}

func (s *Service) post(ctx context.Context, owner inbox.Owner, msg string, apptID uuid.UUID) {
	if _, err := s.inbox.Append(ctx, owner, msg, inbox.KindAppointment, &apptID); err != nil {
		s.logger.Warn().Err(err).
			Str("owner_kind", string(owner.Kind)).
			Str("appointment_id", apptID.String()).
			Msg("appointment notification not stored")
	}
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorView, error) {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return s.repo.ListByDoctor(ctx, doctorID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientView, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// Complete marks an appointment completed. Completing twice is a no-op;
// cancelled appointments stay cancelled.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return nil, ErrCancelled
	}
	if err := s.repo.SetStatus(ctx, id, StatusCompleted); err != nil {
		return nil, err
	}
	a.Status = StatusCompleted
	return a, nil
}
