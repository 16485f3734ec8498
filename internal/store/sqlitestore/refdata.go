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

type securityRepo struct{ db *DB }

func (r securityRepo) Get(ctx context.Context, internalID string) (*domain.Security, error) {
	var data string
	err := r.db.Conn().QueryRowContext(ctx, `SELECT data FROM securities WHERE internal_id = ?`, internalID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sec domain.Security
	if err := json.Unmarshal([]byte(data), &sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

func (r securityRepo) Save(ctx context.Context, sec *domain.Security) error {
	data, err := json.Marshal(sec)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO securities (internal_id, data) VALUES (?, ?)
		ON CONFLICT(internal_id) DO UPDATE SET data = excluded.data
	`, sec.InternalID, string(data))
	return err
}

type indexCompRepo struct{ db *DB }

func (r indexCompRepo) Get(ctx context.Context, parentSecurityID string, asOf time.Time) (*domain.IndexComposition, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT data FROM index_compositions WHERE parent_security_id = ? ORDER BY effective_date DESC`,
		parentSecurityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var comp domain.IndexComposition
		if err := json.Unmarshal([]byte(data), &comp); err != nil {
			return nil, err
		}
		if comp.EffectiveOn(asOf) {
			return &comp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r indexCompRepo) Save(ctx context.Context, comp *domain.IndexComposition) error {
	data, err := json.Marshal(comp)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO index_compositions (parent_security_id, effective_date, data)
		VALUES (?, ?, ?)
		ON CONFLICT(parent_security_id, effective_date) DO UPDATE SET data = excluded.data
	`, comp.ParentSecurityID, comp.EffectiveDate.Format(dateLayout), string(data))
	return err
}

type contractRepo struct{ db *DB }

func (r contractRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]domain.Contract, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT data FROM contracts WHERE security_id = ? AND business_date = ?`,
		securityID, businessDate.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Contract
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c domain.Contract
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r contractRepo) Save(ctx context.Context, c domain.Contract) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO contracts (contract_id, security_id, business_date, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contract_id) DO UPDATE SET data = excluded.data
	`, c.ContractID, c.SecurityID, c.BusinessDate.Format(dateLayout), string(data))
	return err
}

type externalAvailRepo struct{ db *DB }

func (r externalAvailRepo) Get(ctx context.Context, securityID string, businessDate time.Time, source string) (*domain.ExternalAvailability, error) {
	var data string
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT data FROM external_availability WHERE security_id = ? AND business_date = ? AND source_name = ?`,
		securityID, businessDate.Format(dateLayout), source).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ext domain.ExternalAvailability
	if err := json.Unmarshal([]byte(data), &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

func (r externalAvailRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]domain.ExternalAvailability, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT data FROM external_availability WHERE security_id = ? AND business_date = ?`,
		securityID, businessDate.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ExternalAvailability
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var ext domain.ExternalAvailability
		if err := json.Unmarshal([]byte(data), &ext); err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, rows.Err()
}

func (r externalAvailRepo) Save(ctx context.Context, ext domain.ExternalAvailability) error {
	data, err := json.Marshal(ext)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO external_availability (security_id, business_date, source_name, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(security_id, business_date, source_name) DO UPDATE SET data = excluded.data
	`, ext.SecurityID, ext.BusinessDate.Format(dateLayout), ext.SourceName, string(data))
	return err
}
