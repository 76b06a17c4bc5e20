package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, custom_id, name, email, contact_number, age, gender, address,
	emergency_contact, allergies, admission_date, discharge_date, doctor_assigned, diagnosis,
	total_bill, paid_amount, due_amount, payment_status, otp, otp_expiry, last_login,
	created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.CustomID, &p.Name, &p.Email, &p.ContactNumber, &p.Age, &p.Gender,
		&p.Address, &p.EmergencyContact, &p.Allergies, &p.AdmissionDate, &p.DischargeDate,
		&p.DoctorAssigned, &p.Diagnosis, &p.Billing.TotalBill, &p.Billing.PaidAmount,
		&p.Billing.DueAmount, &p.Billing.PaymentStatus, &p.OTP, &p.OTPExpiry, &p.LastLogin,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func translate(err error) error {
	if db.IsUniqueViolation(err) {
		if db.ViolatedConstraint(err) == "patient_custom_id_key" {
			return ErrDuplicateCustomID
		}
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.Billing.PaymentStatus == "" {
		p.Billing.PaymentStatus = PaymentPending
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, custom_id, name, email, contact_number, age, gender, address,
			emergency_contact, allergies, otp, otp_expiry, payment_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING admission_date, created_at, updated_at`,
		p.ID, p.CustomID, p.Name, p.Email, p.ContactNumber, p.Age, p.Gender, p.Address,
		p.EmergencyContact, p.Allergies, p.OTP, p.OTPExpiry, p.Billing.PaymentStatus,
	).Scan(&p.AdmissionDate, &p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByCustomID(ctx context.Context, customID string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE custom_id = $1`, customID))
}

func (r *repoPG) GetByContact(ctx context.Context, contact string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE contact_number = $1`, contact))
}

func (r *repoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetOTP(ctx context.Context, id uuid.UUID, otp string, expiry time.Time) error {
	return r.exec(ctx, `UPDATE patient SET otp = $2, otp_expiry = $3, updated_at = NOW() WHERE id = $1`,
		id, otp, expiry)
}

func (r *repoPG) ConsumeOTP(ctx context.Context, id uuid.UUID, otp, customID string, at time.Time) (string, error) {
	var stored string
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient
		SET otp = NULL, otp_expiry = NULL, custom_id = COALESCE(custom_id, $3),
			last_login = $4, updated_at = NOW()
		WHERE id = $1 AND otp = $2 AND otp_expiry >= $4
		RETURNING custom_id`,
		id, otp, customID, at,
	).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidOTP
	}
	return stored, translate(err)
}

func (r *repoPG) UpdateProfile(ctx context.Context, p *Patient) error {
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	return r.exec(ctx, `
		UPDATE patient SET age = $2, gender = $3, address = $4, emergency_contact = $5,
			allergies = $6, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Age, p.Gender, p.Address, p.EmergencyContact, p.Allergies)
}

func (r *repoPG) SetTreatment(ctx context.Context, id uuid.UUID, diagnosis string, doctorID uuid.UUID) error {
	return r.exec(ctx, `
		UPDATE patient SET diagnosis = $2, doctor_assigned = $3, updated_at = NOW() WHERE id = $1`,
		id, diagnosis, doctorID)
}

func (r *repoPG) ReplaceMedications(ctx context.Context, id uuid.UUID, meds []*Medication) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_medication WHERE patient_id = $1`, id); err != nil {
		return err
	}
	for _, m := range meds {
		m.ID = uuid.New()
		m.PatientID = id
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO patient_medication (id, patient_id, name, dosage, frequency, start_date, end_date)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			m.ID, m.PatientID, m.Name, m.Dosage, m.Frequency, m.StartDate, m.EndDate); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) ListMedications(ctx context.Context, id uuid.UUID) ([]*Medication, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, name, dosage, frequency, start_date, end_date
		FROM patient_medication WHERE patient_id = $1 ORDER BY created_at, name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Medication{}
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency, &m.StartDate, &m.EndDate); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

func (r *repoPG) AddLabReport(ctx context.Context, lr *LabReport) error {
	lr.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_lab_report (id, patient_id, test_name, result, reported_by)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING reported_at`,
		lr.ID, lr.PatientID, lr.TestName, lr.Result, lr.ReportedBy,
	).Scan(&lr.ReportedAt)
}

func (r *repoPG) ListLabReports(ctx context.Context, id uuid.UUID) ([]*LabReport, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, test_name, result, reported_by, reported_at
		FROM patient_lab_report WHERE patient_id = $1 ORDER BY reported_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*LabReport{}
	for rows.Next() {
		var lr LabReport
		if err := rows.Scan(&lr.ID, &lr.PatientID, &lr.TestName, &lr.Result, &lr.ReportedBy, &lr.ReportedAt); err != nil {
			return nil, err
		}
		items = append(items, &lr)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateBilling(ctx context.Context, id uuid.UUID, b Billing) error {
	return r.exec(ctx, `
		UPDATE patient SET total_bill = $2, paid_amount = $3, due_amount = $4, payment_status = $5,
			updated_at = NOW()
		WHERE id = $1`,
		id, b.TotalBill, b.PaidAmount, b.DueAmount, b.PaymentStatus)
}

func (r *repoPG) AppendHistory(ctx context.Context, e *HistoryEntry) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_history (id, patient_id, doctor_id, diagnosis, prescription_file, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING recorded_at`,
		e.ID, e.PatientID, e.DoctorID, e.Diagnosis, e.PrescriptionFile, e.Notes,
	).Scan(&e.RecordedAt)
}

func (r *repoPG) ListHistory(ctx context.Context, id uuid.UUID) ([]*HistoryEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, recorded_at, doctor_id, diagnosis, prescription_file, notes
		FROM medical_history WHERE patient_id = $1 ORDER BY recorded_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.PatientID, &e.RecordedAt, &e.DoctorID, &e.Diagnosis,
			&e.PrescriptionFile, &e.Notes); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}
