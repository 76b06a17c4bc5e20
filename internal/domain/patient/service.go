package patient

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/notification"
)

// Notifier sends templated messages. Satisfied by *notification.Dispatcher.
type Notifier interface {
	Send(ctx context.Context, templateID string, data map[string]string, recipient string) error
}

type TokenIssuer interface {
	IssuePatient(patientID uuid.UUID, customID string) (string, error)
}

type Service struct {
	repo   Repository
	tx     db.Runner
	tokens TokenIssuer
	notify Notifier
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx db.Runner, tokens TokenIssuer, notify Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, tokens: tokens, notify: notify, logger: logger, now: time.Now}
}

// GenerateCode returns a six digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// NewCustomID formats a hospital id as P-{unixMillis}-{0..999}.
func NewCustomID(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1000)
	}
	return fmt.Sprintf("P-%d-%d", now.UnixMilli(), n.Int64())
}

const customIDAttempts = 5

// RequestOTP finds or registers the patient by contact number and texts a
// fresh login code.
func (s *Service) RequestOTP(ctx context.Context, in LoginInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)
	if in.Name == "" || in.Email == "" || in.ContactNumber == "" {
		return ErrMissingFields
	}

	p, err := s.repo.GetByContact(ctx, in.ContactNumber)
	if errors.Is(err, ErrNotFound) {
		p, err = s.create(ctx, in)
	}
	if err != nil {
		return err
	}
	return s.issueCode(ctx, p)
}

func (s *Service) create(ctx context.Context, in LoginInput) (*Patient, error) {
	for i := 0; i < customIDAttempts; i++ {
		cid := NewCustomID(s.now())
		p := &Patient{Name: in.Name, Email: in.Email, ContactNumber: in.ContactNumber, CustomID: &cid}
		err := s.repo.Create(ctx, p)
		if errors.Is(err, ErrDuplicateCustomID) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("patient_id", p.ID.String()).Str("custom_id", cid).Msg("patient registered")
		return p, nil
	}
	return nil, fmt.Errorf("allocate custom id: %w", ErrDuplicateCustomID)
}

// GenerateOTP texts a fresh code to an existing patient.
func (s *Service) GenerateOTP(ctx context.Context, contact string) error {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return ErrMissingFields
	}
	p, err := s.repo.GetByContact(ctx, contact)
	if err != nil {
		return err
	}
	return s.issueCode(ctx, p)
}

func (s *Service) issueCode(ctx context.Context, p *Patient) error {
	code, err := GenerateCode()
	if err != nil {
		return err
	}
	if err := s.repo.SetOTP(ctx, p.ID, code, s.now().Add(OTPTTL)); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := s.notify.Send(ctx, notification.TemplateLoginOTP, map[string]string{"otp": code}, p.ContactNumber); err != nil {
		return fmt.Errorf("%w: %v", ErrSMSFailed, err)
	}
	return nil
}

// VerifyOTP consumes a valid code and issues a seven day patient token. The
// hospital id is texted on a best effort basis.
func (s *Service) VerifyOTP(ctx context.Context, contact, code string) (*VerifyResult, error) {
	contact = strings.TrimSpace(contact)
	code = strings.TrimSpace(code)
	if contact == "" || code == "" {
		return nil, ErrMissingFields
	}

	p, err := s.repo.GetByContact(ctx, contact)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidOTP
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if p.OTP == nil || p.OTPExpiry == nil || *p.OTP != code || now.After(*p.OTPExpiry) {
		return nil, ErrInvalidOTP
	}

	cid := p.CustomIDOrEmpty()
	if cid == "" {
		cid = NewCustomID(now)
	}
	cid, err = s.repo.ConsumeOTP(ctx, p.ID, code, cid, now)
	if err != nil {
		return nil, err
	}

	smsSent := s.notify.Send(ctx, notification.TemplateHospitalID, map[string]string{"custom_id": cid}, p.ContactNumber) == nil

	token, err := s.tokens.IssuePatient(p.ID, cid)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Bool("sms_sent", smsSent).Msg("patient logged in")
	return &VerifyResult{Token: token, CustomID: cid, SMSSent: smsSent}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCustomID returns the patient with medications, lab reports and
// medical history attached.
func (s *Service) GetByCustomID(ctx context.Context, customID string) (*Patient, error) {
	customID = strings.TrimSpace(customID)
	if customID == "" {
		return nil, ErrMissingFields
	}
	p, err := s.repo.GetByCustomID(ctx, customID)
	if err != nil {
		return nil, err
	}
	if p.Medications, err = s.repo.ListMedications(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.LabReports, err = s.repo.ListLabReports(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.MedicalHistory, err = s.repo.ListHistory(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Record(ctx context.Context, customID string) (*Record, error) {
	p, err := s.GetByCustomID(ctx, customID)
	if err != nil {
		return nil, err
	}
	return &Record{
		Name:           p.Name,
		Age:            p.Age,
		Gender:         p.Gender,
		Diagnosis:      p.Diagnosis,
		MedicalHistory: p.MedicalHistory,
	}, nil
}

// UpdateProfile applies only the fields present in u.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Patient, error) {
	if u.Gender != nil && !u.Gender.Valid() {
		return nil, ErrInvalidGender
	}
	if u.Age != nil && (*u.Age < 0 || *u.Age > 150) {
		return nil, ErrInvalidAge
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Age != nil {
		p.Age = u.Age
	}
	if u.Gender != nil {
		p.Gender = u.Gender
	}
	if u.Address != nil {
		p.Address = u.Address
	}
	if u.EmergencyContact != nil {
		p.EmergencyContact = u.EmergencyContact
	}
	if u.Allergies != nil {
		p.Allergies = u.Allergies
	}
	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordTreatment sets the diagnosis and replaces the medication list in one
// transaction.
func (s *Service) RecordTreatment(ctx context.Context, customID string, doctorID uuid.UUID, in TreatmentInput) (*Patient, error) {
	in.Diagnosis = strings.TrimSpace(in.Diagnosis)
	if in.Diagnosis == "" {
		return nil, ErrDiagnosisRequired
	}
	for _, m := range in.Medications {
		if m == nil || strings.TrimSpace(m.Name) == "" {
			return nil, ErrMedicationName
		}
		if m.StartDate == nil {
			t := s.now()
			m.StartDate = &t
		}
	}

	p, err := s.repo.GetByCustomID(ctx, customID)
	if err != nil {
		return nil, err
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetTreatment(ctx, p.ID, in.Diagnosis, doctorID); err != nil {
			return err
		}
		return s.repo.ReplaceMedications(ctx, p.ID, in.Medications)
	})
	if err != nil {
		return nil, fmt.Errorf("record treatment: %w", err)
	}
	return s.GetByCustomID(ctx, customID)
}

func (s *Service) AddLabReport(ctx context.Context, customID string, reporter uuid.UUID, in LabReportInput) (*LabReport, error) {
	in.TestName = strings.TrimSpace(in.TestName)
	in.Result = strings.TrimSpace(in.Result)
	if in.TestName == "" || in.Result == "" {
		return nil, ErrLabReportFields
	}
	p, err := s.repo.GetByCustomID(ctx, customID)
	if err != nil {
		return nil, err
	}
	lr := &LabReport{PatientID: p.ID, TestName: in.TestName, Result: in.Result, ReportedBy: &reporter}
	if err := s.repo.AddLabReport(ctx, lr); err != nil {
		return nil, err
	}
	return lr, nil
}

func (s *Service) UpdateBilling(ctx context.Context, customID string, in BillingInput) (*Billing, error) {
	if in.TotalBill < 0 || in.PaidAmount < 0 {
		return nil, ErrNegativeAmount
	}
	if in.PaidAmount > in.TotalBill {
		return nil, ErrOverpaid
	}
	p, err := s.repo.GetByCustomID(ctx, customID)
	if err != nil {
		return nil, err
	}
	b := NewBilling(in.TotalBill, in.PaidAmount)
	if err := s.repo.UpdateBilling(ctx, p.ID, b); err != nil {
		return nil, err
	}
	return &b, nil
}

// AppendHistory adds an immutable medical history entry.
func (s *Service) AppendHistory(ctx context.Context, e *HistoryEntry) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient is required")
	}
	return s.repo.AppendHistory(ctx, e)
}
