package inbox

import (
	"context"

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

const entryCols = `seq, id, owner_kind, owner_id, message, kind, appointment_id, is_read, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.Seq, &e.ID, &e.Owner.Kind, &e.Owner.ID, &e.Message, &e.Kind,
		&e.AppointmentID, &e.Read, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notification (id, owner_kind, owner_id, message, kind, appointment_id, is_read)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING seq, created_at`,
		e.ID, e.Owner.Kind, e.Owner.ID, e.Message, e.Kind, e.AppointmentID, e.Read,
	).Scan(&e.Seq, &e.CreatedAt)
}

func (r *repoPG) List(ctx context.Context, owner Owner) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+entryCols+` FROM notification
		WHERE owner_kind = $1 AND owner_id = $2 ORDER BY seq`, owner.Kind, owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, owner Owner, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE notification SET is_read = TRUE
		WHERE id = $1 AND owner_kind = $2 AND owner_id = $3`, id, owner.Kind, owner.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) PurgeRead(ctx context.Context, owner Owner) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM notification WHERE owner_kind = $1 AND owner_id = $2 AND is_read`,
		owner.Kind, owner.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
