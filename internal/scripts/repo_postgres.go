package scripts

import (
	"context"
	"database/sql"
	"errors"

	"edu-video-studio/pkg/utils"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scripts (
  id          TEXT PRIMARY KEY,
  name        TEXT NOT NULL,
  format      TEXT NOT NULL,
  content     TEXT NOT NULL,
  size_bytes  INTEGER NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS scripts_created_at_idx ON scripts (created_at DESC)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.EnsureSchema(ctx, r.db, schema...)
}

// Save upserts by id, keeping the original created_at.
func (r *PostgresRepo) Save(ctx context.Context, s Script) error {
	const q = `
INSERT INTO scripts (id, name, format, content, size_bytes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  format = EXCLUDED.format,
  content = EXCLUDED.content,
  size_bytes = EXCLUDED.size_bytes,
  updated_at = EXCLUDED.updated_at
`
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q, s.ID, s.Name, s.Format, s.Content, s.SizeBytes, s.CreatedAt, s.UpdatedAt)
		return err
	})
}

func (r *PostgresRepo) List(ctx context.Context) ([]Script, error) {
	const q = `
SELECT id, name, format, size_bytes, created_at, updated_at
FROM scripts
ORDER BY created_at DESC, id DESC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Script, 0)
	for rows.Next() {
		var s Script
		if err := rows.Scan(&s.ID, &s.Name, &s.Format, &s.SizeBytes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Script, error) {
	const q = `
SELECT id, name, format, content, size_bytes, created_at, updated_at
FROM scripts
WHERE id = $1
`
	var s Script
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID,
		&s.Name,
		&s.Format,
		&s.Content,
		&s.SizeBytes,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Script{}, ErrNotFound
		}
		return Script{}, err
	}
	return s, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scripts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
