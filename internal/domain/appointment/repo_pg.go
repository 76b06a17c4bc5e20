package appointment

import (
	"context"
	"errors"
	"fmt"
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

const apptCols = `a.id, a.doctor_id, a.patient_id, a.scheduled_at, a.status, a.prescription, a.notes,
	a.created_at, a.updated_at`

func scanAppt(row pgx.Row, extra ...interface{}) (*Appointment, error) {
	var a Appointment
	dest := append([]interface{}{&a.ID, &a.DoctorID, &a.PatientID, &a.ScheduledAt, &a.Status,
		&a.Prescription, &a.Notes, &a.CreatedAt, &a.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, doctor_id, patient_id, scheduled_at, status, prescription, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.ScheduledAt, a.Status, a.Prescription, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment a WHERE a.id = $1`, id))
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) HasActive(ctx context.Context, doctorID, patientID uuid.UUID, from, to time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE doctor_id = $1 AND patient_id = $2
			  AND scheduled_at >= $3 AND scheduled_at < $4
			  AND status <> $5)`,
		doctorID, patientID, from, to, StatusCancelled).Scan(&exists)
	return exists, err
}

func (r *repoPG) LockBooking(ctx context.Context, doctorID, patientID uuid.UUID, day time.Time) error {
	key := fmt.Sprintf("booking:%s:%s:%s", doctorID, patientID, day.Format("2006-01-02"))
	_, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorView, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`, p.name, p.age, p.gender
		FROM appointment a JOIN patient p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
		ORDER BY a.scheduled_at`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DoctorView
	for rows.Next() {
		var v DoctorView
		a, err := scanAppt(rows, &v.Patient.Name, &v.Patient.Age, &v.Patient.Gender)
		if err != nil {
			return nil, err
		}
		v.Appointment = *a
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientView, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`, d.username, d.specialization
		FROM appointment a JOIN account d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.scheduled_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PatientView
	for rows.Next() {
		var v PatientView
		a, err := scanAppt(rows, &v.Doctor.Username, &v.Doctor.Specialization)
		if err != nil {
			return nil, err
		}
		v.Appointment = *a
		out = append(out, &v)
	}
	return out, rows.Err()
}
