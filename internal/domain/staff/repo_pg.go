package staff

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/auth"
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

const accountCols = `id, username, email, password_hash, role, specialization,
	is_approved, status, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.Specialization,
		&a.IsApproved, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO account (id, username, email, password_hash, role, specialization, is_approved, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.Username, a.Email, a.PasswordHash, a.Role, a.Specialization, a.IsApproved, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE email = $1`, email))
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Account, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) ListPending(ctx context.Context) ([]*Account, error) {
	return r.list(ctx, `SELECT `+accountCols+` FROM account
		WHERE NOT is_approved AND role IN ('Doctor', 'Receptionist', 'LabTechnician')
		ORDER BY created_at`)
}

func (r *repoPG) ListNonAdmin(ctx context.Context) ([]*Account, error) {
	return r.list(ctx, `SELECT `+accountCols+` FROM account WHERE role <> 'Admin' ORDER BY created_at`)
}

func (r *repoPG) ListByRole(ctx context.Context, role auth.Role) ([]*Account, error) {
	return r.list(ctx, `SELECT `+accountCols+` FROM account WHERE role = $1 ORDER BY username`, role)
}

func (r *repoPG) SetApproval(ctx context.Context, id uuid.UUID, approved bool, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE account SET is_approved = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, approved, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePending runs as one statement; the account's appointments go with it
// through the appointment foreign key.
func (r *repoPG) DeletePending(ctx context.Context, id uuid.UUID) error {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		WITH gone AS (
			DELETE FROM account WHERE id = $1 AND NOT is_approved RETURNING id
		), inbox AS (
			DELETE FROM notification
			WHERE owner_kind = 'account' AND owner_id IN (SELECT id FROM gone)
		)
		SELECT COUNT(*) FROM gone`, id).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
