package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/vstore/internal/store"
)

// Entry is one journal row.
type Entry struct {
	Seq        int64
	Collection string
	EntityID   string
	Version    int64
	Deleted    bool
	Payload    string
	ReceivedAt time.Time
}

// Change decodes the stored payload.
func (e Entry) Change() (store.Change, error) {
	return unmarshalChange(e.Collection, e.EntityID, e.Payload)
}

const selectEntries = `
	SELECT seq, collection, entity_id, version, deleted, payload, received_at
	FROM changes
`

// ReadEntity returns every row recorded for one entity, ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (j *Journal) ReadEntity(ctx context.Context, collection, id string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, selectEntries+`
		WHERE collection = ? AND entity_id = ?
		ORDER BY seq ASC
	`, collection, id)
	if err != nil {
		return nil, fmt.Errorf("read entity: %w", err)
	}
	return scanEntries(rows)
}

// ReadSince returns up to limit rows with seq greater than after, ordered by
// seq. A limit of zero or less returns every remaining row.
func (j *Journal) ReadSince(ctx context.Context, after int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, selectEntries+`
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("read since %d: %w", after, err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.Seq, &e.Collection, &e.EntityID, &e.Version, &e.Deleted, &e.Payload, &ms); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		e.ReceivedAt = time.UnixMilli(ms).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return entries, nil
}
