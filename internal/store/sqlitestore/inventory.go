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

type inventoryRepo struct{ db *DB }

func (r inventoryRepo) Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryAvailability, error) {
	var data string
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT data FROM inventory
		WHERE security_id = ? AND counterparty_id = ? AND au_id = ? AND calc_type = ? AND business_date = ?
	`, key.SecurityID, key.CounterpartyID, key.AggregationUnitID, string(key.CalculationType), key.BusinessDate.Format(dateLayout)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var inv domain.InventoryAvailability
	if err := json.Unmarshal([]byte(data), &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r inventoryRepo) Save(ctx context.Context, inv *domain.InventoryAvailability) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO inventory (security_id, counterparty_id, au_id, calc_type, business_date, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(security_id, counterparty_id, au_id, calc_type, business_date) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, inv.Key.SecurityID, inv.Key.CounterpartyID, inv.Key.AggregationUnitID, string(inv.Key.CalculationType), inv.Key.BusinessDate.Format(dateLayout), string(data), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r inventoryRepo) SaveBatch(ctx context.Context, records []*domain.InventoryAvailability) error {
	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inventory (security_id, counterparty_id, au_id, calc_type, business_date, data, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(security_id, counterparty_id, au_id, calc_type, business_date) DO UPDATE SET
				data = excluded.data,
				updated_at = excluded.updated_at
		`, rec.Key.SecurityID, rec.Key.CounterpartyID, rec.Key.AggregationUnitID, string(rec.Key.CalculationType), rec.Key.BusinessDate.Format(dateLayout), string(data), time.Now().UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r inventoryRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.InventoryAvailability, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT data FROM inventory WHERE security_id = ? AND business_date = ?`,
		securityID, businessDate.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.InventoryAvailability
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var inv domain.InventoryAvailability
		if err := json.Unmarshal([]byte(data), &inv); err != nil {
			return nil, err
		}
		out = append(out, &inv)
	}
	return out, rows.Err()
}
