package prescription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/staff"
	"github.com/hms/hms/internal/platform/blobstore"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrNotFound        = errors.New("prescription not found")
)

const historyNote = "Prescription generated"

type Patients interface {
	GetByCustomID(ctx context.Context, customID string) (*patient.Patient, error)
	AppendHistory(ctx context.Context, e *patient.HistoryEntry) error
}

type Doctors interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*staff.Account, error)
}

type Inbox interface {
	Append(ctx context.Context, owner inbox.Owner, message string, kind inbox.Kind, appointmentID *uuid.UUID) (*inbox.Entry, error)
}

// Document describes a stored prescription artifact.
type Document struct {
	Name      string
	PatientID uuid.UUID
	CustomID  string
	Size      int64
}

type Service struct {
	patients Patients
	doctors  Doctors
	blobs    blobstore.BlobStore
	inbox    Inbox
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(patients Patients, doctors Doctors, blobs blobstore.BlobStore, in Inbox, logger zerolog.Logger) *Service {
	return &Service{patients: patients, doctors: doctors, blobs: blobs, inbox: in, logger: logger, now: time.Now}
}

// FileName returns the artifact name for a prescription issued at t.
func FileName(customID string, t time.Time) string {
	return fmt.Sprintf("prescription_%s_%d.pdf", customID, t.UnixMilli())
}

// OwnedBy reports whether the artifact name belongs to the patient with
// customID.
func OwnedBy(name, customID string) bool {
	return customID != "" && strings.HasPrefix(name, "prescription_"+customID+"_")
}

// Issue renders and stores a prescription for the patient, records it in
// the medical history and notifies the patient.
func (s *Service) Issue(ctx context.Context, customID string, doctorID uuid.UUID) (*Document, error) {
	p, err := s.patients.GetByCustomID(ctx, customID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) || errors.Is(err, patient.ErrMissingFields) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	now := s.now()
	sheet := Sheet{
		PatientName: p.Name,
		CustomID:    p.CustomIDOrEmpty(),
		Age:         p.Age,
		Contact:     p.ContactNumber,
		DoctorName:  doc.Username,
		IssuedAt:    now,
	}
	if p.Gender != nil {
		sheet.Gender = string(*p.Gender)
	}
	if p.Diagnosis != nil {
		sheet.Diagnosis = *p.Diagnosis
	}
	for _, m := range p.Medications {
		sheet.Medications = append(sheet.Medications, MedicationLine{Name: m.Name, Dosage: m.Dosage, Frequency: m.Frequency})
	}

	var buf bytes.Buffer
	if err := Render(&buf, sheet); err != nil {
		return nil, fmt.Errorf("render prescription: %w", err)
	}

	name := FileName(sheet.CustomID, now)
	meta, err := s.blobs.Put(ctx, name, &buf)
	if err != nil {
		return nil, fmt.Errorf("store prescription: %w", err)
	}

	err = s.patients.AppendHistory(ctx, &patient.HistoryEntry{
		PatientID:        p.ID,
		DoctorID:         &doc.ID,
		Diagnosis:        sheet.Diagnosis,
		PrescriptionFile: name,
		Notes:            historyNote,
	})
	if err != nil {
		s.Discard(ctx, name)
		return nil, fmt.Errorf("record prescription: %w", err)
	}

	if _, err := s.inbox.Append(ctx, inbox.PatientOwner(p.ID), "New prescription from Dr. "+doc.Username, inbox.KindPrescription, nil); err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("prescription notification not stored")
	}

	s.logger.Info().Str("file", name).Str("doctor_id", doc.ID.String()).Msg("prescription issued")
	return &Document{Name: name, PatientID: p.ID, CustomID: sheet.CustomID, Size: meta.Size}, nil
}

// Open returns a reader over a stored prescription.
func (s *Service) Open(ctx context.Context, name string) (io.ReadCloser, *blobstore.BlobMetadata, error) {
	rc, meta, err := s.blobs.Open(ctx, name)
	if errors.Is(err, blobstore.ErrBlobNotFound) || errors.Is(err, blobstore.ErrInvalidFileName) || errors.Is(err, blobstore.ErrMissingFileName) {
		return nil, nil, ErrNotFound
	}
	return rc, meta, err
}

// Discard removes an artifact whose delivery failed.
func (s *Service) Discard(ctx context.Context, name string) {
	if err := s.blobs.Delete(ctx, name); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Error().Err(err).Str("file", name).Msg("failed to delete prescription artifact")
	}
}
