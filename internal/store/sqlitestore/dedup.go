package sqlitestore

import (
	"context"
	"time"
)

type dedupRepo struct{ db *DB }

func (r dedupRepo) SeenRecently(ctx context.Context, eventID string, window time.Duration) (bool, error) {
	var seenAt string
	err := r.db.Conn().QueryRowContext(ctx, `SELECT seen_at FROM dedup WHERE event_id = ?`, eventID).Scan(&seenAt)
	if err != nil {
		return false, nil
	}
	t, err := time.Parse(time.RFC3339, seenAt)
	if err != nil {
		return false, err
	}
	return time.Since(t) < window, nil
}

func (r dedupRepo) Record(ctx context.Context, eventID string, at time.Time) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO dedup (event_id, seen_at) VALUES (?, ?)
		ON CONFLICT(event_id) DO UPDATE SET seen_at = excluded.seen_at
	`, eventID, at.UTC().Format(time.RFC3339))
	return err
}

func (r dedupRepo) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.db.Conn().ExecContext(ctx, `DELETE FROM dedup WHERE seen_at < ?`, olderThan.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
