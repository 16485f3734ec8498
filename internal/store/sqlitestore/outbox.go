package sqlitestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/eventbus"
)

// outboxRepo implements eventbus.OutboxStore over the same connection pool
// as the rest of the store. Append runs as its own statement, outside any
// transaction an entity Save uses.
type outboxRepo struct{ db *DB }

func (r *outboxRepo) Append(ctx context.Context, evt domain.Event) (int64, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return 0, err
	}
	res, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO outbox (event_id, event_type, created_at, data)
		VALUES (?, ?, ?, ?)
	`, evt.Header.EventID, string(evt.Header.EventType), time.Now().UTC().Format(time.RFC3339), string(data))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *outboxRepo) Pending(ctx context.Context, limit int) ([]eventbus.OutboxRecord, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT sequence_id, data, created_at FROM outbox
		WHERE published_at IS NULL
		ORDER BY sequence_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []eventbus.OutboxRecord
	for rows.Next() {
		var seq int64
		var data, createdAt string
		if err := rows.Scan(&seq, &data, &createdAt); err != nil {
			return nil, err
		}
		var evt domain.Event
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return nil, err
		}
		created, _ := time.Parse(time.RFC3339, createdAt)
		out = append(out, eventbus.OutboxRecord{SequenceID: seq, Event: evt, CreatedAt: created})
	}
	return out, rows.Err()
}

func (r *outboxRepo) MarkPublished(ctx context.Context, sequenceID int64) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		UPDATE outbox SET published_at = ? WHERE sequence_id = ?
	`, time.Now().UTC().Format(time.RFC3339), sequenceID)
	return err
}
