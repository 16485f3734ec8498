package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

type clientLimitRepo struct{ db *DB }

func (r clientLimitRepo) Get(ctx context.Context, key domain.LimitKey) (*domain.ClientLimit, error) {
	var data string
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT data FROM client_limits WHERE id = ? AND security_id = ? AND business_date = ?`,
		key.ID, key.SecurityID, key.BusinessDate.Format(dateLayout)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var limit domain.ClientLimit
	if err := json.Unmarshal([]byte(data), &limit); err != nil {
		return nil, err
	}
	return &limit, nil
}

func (r clientLimitRepo) Save(ctx context.Context, limit *domain.ClientLimit) error {
	data, err := json.Marshal(limit)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO client_limits (id, security_id, business_date, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id, security_id, business_date) DO UPDATE SET data = excluded.data
	`, limit.Key.ID, limit.Key.SecurityID, limit.Key.BusinessDate.Format(dateLayout), string(data))
	return err
}

type auLimitRepo struct{ db *DB }

func (r auLimitRepo) Get(ctx context.Context, key domain.LimitKey) (*domain.AggregationUnitLimit, error) {
	var data string
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT data FROM au_limits WHERE id = ? AND security_id = ? AND business_date = ?`,
		key.ID, key.SecurityID, key.BusinessDate.Format(dateLayout)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var limit domain.AggregationUnitLimit
	if err := json.Unmarshal([]byte(data), &limit); err != nil {
		return nil, err
	}
	return &limit, nil
}

func (r auLimitRepo) Save(ctx context.Context, limit *domain.AggregationUnitLimit) error {
	data, err := json.Marshal(limit)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO au_limits (id, security_id, business_date, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id, security_id, business_date) DO UPDATE SET data = excluded.data
	`, limit.Key.ID, limit.Key.SecurityID, limit.Key.BusinessDate.Format(dateLayout), string(data))
	return err
}
