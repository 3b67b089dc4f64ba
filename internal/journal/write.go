package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/vstore/internal/store"
)

// Append records one change and returns its seq.
func (j *Journal) Append(ctx context.Context, ch store.Change) (int64, error) {
	var seq int64
	err := j.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		seq, err = j.insert(ctx, tx, ch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append change: %w", err)
	}
	return seq, nil
}

// AppendMessage decodes a change-channel message published for collection
// and records every entry in one transaction, in id order. It returns the
// seq of each row.
func (j *Journal) AppendMessage(ctx context.Context, collection string, payload []byte) ([]int64, error) {
	changes, err := store.ParseChanges(collection, payload)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	seqs := make([]int64, 0, len(changes))
	err = j.inTx(ctx, func(tx *sql.Tx) error {
		for _, ch := range changes {
			seq, err := j.insert(ctx, tx, ch)
			if err != nil {
				return err
			}
			seqs = append(seqs, seq)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return seqs, nil
}

func (j *Journal) insert(ctx context.Context, tx *sql.Tx, ch store.Change) (int64, error) {
	if ch.Collection == "" || ch.ID == "" {
		return 0, fmt.Errorf("change needs a collection and an id, got %q/%q", ch.Collection, ch.ID)
	}
	payload, err := marshalChange(ch)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO changes
		(collection, entity_id, version, deleted, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		ch.Collection,
		ch.ID,
		ch.Version,
		ch.Deleted,
		payload,
		j.now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (j *Journal) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
