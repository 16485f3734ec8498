package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

type ruleRepo struct{ db *DB }

func (r ruleRepo) Get(ctx context.Context, name string, version int) (*domain.CalculationRule, error) {
	var data string
	err := r.db.Conn().QueryRowContext(ctx, `SELECT data FROM rules WHERE name = ? AND version = ?`, name, version).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rule domain.CalculationRule
	if err := json.Unmarshal([]byte(data), &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r ruleRepo) Save(ctx context.Context, rule *domain.CalculationRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return err
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO rules (name, version, rule_type, market, status, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET
			rule_type = excluded.rule_type,
			market = excluded.market,
			status = excluded.status,
			data = excluded.data
	`, rule.Name, rule.Version, string(rule.RuleType), rule.Market, string(rule.Status), string(data))
	return err
}

func (r ruleRepo) ListActive(ctx context.Context, ruleType domain.CalculationType, market string) ([]*domain.CalculationRule, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT data FROM rules
		WHERE rule_type = ? AND status = ? AND (market = '' OR market = ?)
	`, string(ruleType), string(domain.RuleActive), market)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r ruleRepo) ListAll(ctx context.Context) ([]*domain.CalculationRule, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `SELECT data FROM rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func scanRules(rows *sql.Rows) ([]*domain.CalculationRule, error) {
	var out []*domain.CalculationRule
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rule domain.CalculationRule
		if err := json.Unmarshal([]byte(data), &rule); err != nil {
			return nil, err
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}
