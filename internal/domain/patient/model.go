package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("patient not found")
	ErrDuplicate         = errors.New("patient already exists")
	ErrDuplicateCustomID = errors.New("custom id already taken")
	ErrInvalidOTP        = errors.New("invalid or expired otp")
	ErrMissingFields     = errors.New("required fields missing")
	ErrSMSFailed         = errors.New("sms delivery failed")

	ErrInvalidGender     = errors.New("gender must be one of Male, Female, Other")
	ErrInvalidAge        = errors.New("age must be between 0 and 150")
	ErrDiagnosisRequired = errors.New("diagnosis is required")
	ErrMedicationName    = errors.New("medication name is required")
	ErrLabReportFields   = errors.New("testName and result are required")
	ErrNegativeAmount    = errors.New("amounts must not be negative")
	ErrOverpaid          = errors.New("paid amount cannot exceed total bill")
)

// OTPTTL is how long a login code stays valid.
const OTPTTL = 10 * time.Minute

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

type PaymentStatus string

const (
	PaymentPaid          PaymentStatus = "Paid"
	PaymentPending       PaymentStatus = "Pending"
	PaymentPartiallyPaid PaymentStatus = "Partially Paid"
)

type EmergencyContact struct {
	Name          string `json:"name,omitempty"`
	Relation      string `json:"relation,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`
}

type Billing struct {
	TotalBill     float64       `json:"totalBill"`
	PaidAmount    float64       `json:"paidAmount"`
	DueAmount     float64       `json:"dueAmount"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

type Patient struct {
	ID               uuid.UUID         `json:"id"`
	CustomID         *string           `json:"customId"`
	Name             string            `json:"name"`
	Email            string            `json:"email"`
	ContactNumber    string            `json:"contactNumber"`
	Age              *int              `json:"age,omitempty"`
	Gender           *Gender           `json:"gender,omitempty"`
	Address          *string           `json:"address,omitempty"`
	EmergencyContact *EmergencyContact `json:"emergencyContact,omitempty"`
	Allergies        []string          `json:"allergies"`
	AdmissionDate    time.Time         `json:"admissionDate"`
	DischargeDate    *time.Time        `json:"dischargeDate,omitempty"`
	DoctorAssigned   *uuid.UUID        `json:"doctorAssigned,omitempty"`
	Diagnosis        *string           `json:"diagnosis,omitempty"`
	Billing          Billing           `json:"billing"`
	OTP              *string           `json:"-"`
	OTPExpiry        *time.Time        `json:"-"`
	LastLogin        *time.Time        `json:"lastLogin,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`

	Medications    []*Medication   `json:"medications,omitempty"`
	LabReports     []*LabReport    `json:"labReports,omitempty"`
	MedicalHistory []*HistoryEntry `json:"medicalHistory,omitempty"`
}

// CustomIDOrEmpty returns the hospital id, or "" before one is assigned.
func (p *Patient) CustomIDOrEmpty() string {
	if p.CustomID == nil {
		return ""
	}
	return *p.CustomID
}

type Medication struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"-"`
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage"`
	Frequency string     `json:"frequency"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

type LabReport struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"-"`
	TestName   string     `json:"testName"`
	Result     string     `json:"result"`
	ReportedBy *uuid.UUID `json:"reportedBy,omitempty"`
	ReportedAt time.Time  `json:"date"`
}

// HistoryEntry is an append-only medical history record.
type HistoryEntry struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"-"`
	RecordedAt       time.Time  `json:"date"`
	DoctorID         *uuid.UUID `json:"doctorId,omitempty"`
	Diagnosis        string     `json:"diagnosis,omitempty"`
	PrescriptionFile string     `json:"prescriptions,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// Record is the summary shown to staff and to the patient.
type Record struct {
	Name           string          `json:"name"`
	Age            *int            `json:"age"`
	Gender         *Gender         `json:"gender"`
	Diagnosis      *string         `json:"diagnosis"`
	MedicalHistory []*HistoryEntry `json:"medicalHistory"`
}

type LoginInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	ContactNumber string `json:"contactNumber"`
}

type VerifyResult struct {
	Token    string
	CustomID string
	SMSSent  bool
}

type ProfileUpdate struct {
	Age              *int              `json:"age"`
	Gender           *Gender           `json:"gender"`
	Address          *string           `json:"address"`
	EmergencyContact *EmergencyContact `json:"emergencyContact"`
	Allergies        []string          `json:"allergies"`
}

type TreatmentInput struct {
	Diagnosis   string        `json:"diagnosis"`
	Medications []*Medication `json:"medications"`
}

type LabReportInput struct {
	TestName string `json:"testName"`
	Result   string `json:"result"`
}

type BillingInput struct {
	TotalBill  float64 `json:"totalBill"`
	PaidAmount float64 `json:"paidAmount"`
}

// NewBilling derives the due amount and payment status.
func NewBilling(total, paid float64) Billing {
	b := Billing{TotalBill: total, PaidAmount: paid, DueAmount: total - paid}
	switch {
	case total > 0 && b.DueAmount <= 0:
		b.DueAmount = 0
		b.PaymentStatus = PaymentPaid
	case paid > 0:
		b.PaymentStatus = PaymentPartiallyPaid
	default:
		b.PaymentStatus = PaymentPending
	}
	return b
}
