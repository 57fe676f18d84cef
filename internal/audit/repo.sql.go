package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit entries in PostgreSQL. The table is append only
// and indexed for retrieval by org, by entity and by time range.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one entry.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	changesJSON, err := json.Marshal(entry.Changes)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_entries (id, org_id, actor_id, action, entity, entity_id, changes, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.OrgID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, changesJSON, entry.At)
	return err
}

// ListWindow returns entries matching the filter, newest first.
func (r *Repository) ListWindow(ctx context.Context, filter TimelineFilter, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, actor_id, action, entity, entity_id, changes, occurred_at
FROM audit_entries
WHERE ($1::bigint = 0 OR org_id = $1)
  AND ($2::text = '' OR entity = $2)
  AND ($3::text = '' OR entity_id = $3)
  AND ($4::timestamptz IS NULL OR occurred_at >= $4)
  AND ($5::timestamptz IS NULL OR occurred_at <= $5)
ORDER BY occurred_at DESC
OFFSET $6 LIMIT $7`,
		filter.OrgID, filter.Entity, filter.EntityID, nullTime(filter.From), nullTime(filter.To), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var changesJSON []byte
		if err := rows.Scan(&entry.ID, &entry.OrgID, &entry.ActorID, &entry.Action, &entry.Entity, &entry.EntityID, &changesJSON, &entry.At); err != nil {
			return nil, err
		}
		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &entry.Changes); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
