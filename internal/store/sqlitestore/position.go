package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

const dateLayout = "2006-01-02"

type positionRepo struct{ db *DB }

func (r positionRepo) Get(ctx context.Context, key domain.PositionKey) (*domain.Position, error) {
	var data string
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT data FROM positions WHERE book_id = ? AND security_id = ? AND business_date = ?`,
		key.BookID, key.SecurityInternalID, key.BusinessDate.Format(dateLayout),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var pos domain.Position
	if err := json.Unmarshal([]byte(data), &pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

func (r positionRepo) Save(ctx context.Context, pos *domain.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO positions (book_id, security_id, business_date, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(book_id, security_id, business_date) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, pos.Key.BookID, pos.Key.SecurityInternalID, pos.Key.BusinessDate.Format(dateLayout), string(data), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r positionRepo) SaveBatch(ctx context.Context, positions []*domain.Position) error {
	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, pos := range positions {
		data, err := json.Marshal(pos)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (book_id, security_id, business_date, data, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(book_id, security_id, business_date) DO UPDATE SET
				data = excluded.data,
				updated_at = excluded.updated_at
		`, pos.Key.BookID, pos.Key.SecurityInternalID, pos.Key.BusinessDate.Format(dateLayout), string(data), time.Now().UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r positionRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.Position, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT data FROM positions WHERE security_id = ? AND business_date = ?`,
		securityID, businessDate.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (r positionRepo) ListByBook(ctx context.Context, bookID string, businessDate time.Time) ([]*domain.Position, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT data FROM positions WHERE book_id = ? AND business_date = ?`,
		bookID, businessDate.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPositions(rows)
}

func scanPositions(rows *sql.Rows) ([]*domain.Position, error) {
	var out []*domain.Position
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var pos domain.Position
		if err := json.Unmarshal([]byte(data), &pos); err != nil {
			return nil, err
		}
		out = append(out, &pos)
	}
	return out, rows.Err()
}
