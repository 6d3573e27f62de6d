package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"edu-video-studio/pkg/utils"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS history_events (
  id            TEXT PRIMARY KEY,
  type          TEXT NOT NULL,
  actor_user_id TEXT NOT NULL DEFAULT '',
  job_id        TEXT NOT NULL DEFAULT '',
  avatar_id     TEXT NOT NULL DEFAULT '',
  status        TEXT NOT NULL DEFAULT '',
  message       TEXT NOT NULL DEFAULT '',
  metadata      TEXT NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS history_events_created_at_idx ON history_events (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS history_events_job_id_idx ON history_events (job_id)`,
}

// PostgresRepo stores events in history_events. Rows are only ever inserted.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// EnsureSchema creates the table and indexes if missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.EnsureSchema(ctx, r.db, schema...)
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO history_events (
  id, type, actor_user_id, job_id, avatar_id, status, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorUserID,
		e.JobID,
		e.AvatarID,
		e.Status,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	q, args := buildListQuery(f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(
			&e.ID,
			&typ,
			&e.ActorUserID,
			&e.JobID,
			&e.AvatarID,
			&e.Status,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildListQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if f.ActorUserID != "" {
		add("actor_user_id = $%d", f.ActorUserID)
	}
	if f.JobID != "" {
		add("job_id = $%d", f.JobID)
	}

	var b strings.Builder
	b.WriteString(`SELECT id, type, actor_user_id, job_id, avatar_id, status, message, metadata, created_at FROM history_events`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}
