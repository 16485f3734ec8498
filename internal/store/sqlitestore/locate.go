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

type locateRepo struct{ db *DB }

func (r locateRepo) Get(ctx context.Context, requestID string) (*domain.LocateRequest, error) {
	var data string
	err := r.db.Conn().QueryRowContext(ctx, `SELECT data FROM locates WHERE request_id = ?`, requestID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var req domain.LocateRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r locateRepo) Save(ctx context.Context, req *domain.LocateRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO locates (request_id, security_id, business_date, state, expiry_date, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			security_id = excluded.security_id,
			business_date = excluded.business_date,
			state = excluded.state,
			expiry_date = excluded.expiry_date,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, req.RequestID, req.SecurityID, req.BusinessDate.Format(dateLayout), string(req.State), req.ExpiryDate.UTC().Format(time.RFC3339), string(data), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r locateRepo) ListPendingExpiry(ctx context.Context, asOf time.Time) ([]*domain.LocateRequest, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT data FROM locates WHERE state = ? AND expiry_date <= ?`,
		string(domain.LocateApproved), asOf.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLocates(rows)
}

func (r locateRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.LocateRequest, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT data FROM locates WHERE security_id = ? AND business_date = ?`,
		securityID, businessDate.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLocates(rows)
}

func scanLocates(rows *sql.Rows) ([]*domain.LocateRequest, error) {
	var out []*domain.LocateRequest
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var req domain.LocateRequest
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			return nil, err
		}
		out = append(out, &req)
	}
	return out, rows.Err()
}
