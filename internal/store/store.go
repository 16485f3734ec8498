// Package store defines the repository contracts the engines persist
// through, independent of backing technology. memstore implements them
// in-memory for fast unit tests; sqlitestore implements them durably over
// modernc.org/sqlite.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
)

// ErrNotFound is returned by Get-style methods when no record matches.
var ErrNotFound = errors.New("store: not found")

// ErrVersionConflict is returned by Save when the caller's AuditHeader.Version
// does not match the currently stored version, signalling a lost update
// (optimistic concurrency per spec.md §3's audit header contract).
var ErrVersionConflict = errors.New("store: version conflict")

// PositionStore persists domain.Position keyed by domain.PositionKey.
type PositionStore interface {
	Get(ctx context.Context, key domain.PositionKey) (*domain.Position, error)
	Save(ctx context.Context, pos *domain.Position) error
	ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.Position, error)
	ListByBook(ctx context.Context, bookID string, businessDate time.Time) ([]*domain.Position, error)
	SaveBatch(ctx context.Context, positions []*domain.Position) error
}

// InventoryStore persists domain.InventoryAvailability keyed by domain.InventoryKey.
type InventoryStore interface {
	Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryAvailability, error)
	Save(ctx context.Context, inv *domain.InventoryAvailability) error
	ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.InventoryAvailability, error)
	SaveBatch(ctx context.Context, records []*domain.InventoryAvailability) error
}

// LocateStore persists domain.LocateRequest keyed by RequestID.
type LocateStore interface {
	Get(ctx context.Context, requestID string) (*domain.LocateRequest, error)
	Save(ctx context.Context, req *domain.LocateRequest) error
	ListPendingExpiry(ctx context.Context, asOf time.Time) ([]*domain.LocateRequest, error)
	ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.LocateRequest, error)
}

// RuleStore persists domain.CalculationRule keyed by (Name, Version).
type RuleStore interface {
	Get(ctx context.Context, name string, version int) (*domain.CalculationRule, error)
	Save(ctx context.Context, rule *domain.CalculationRule) error
	ListActive(ctx context.Context, ruleType domain.CalculationType, market string) ([]*domain.CalculationRule, error)
	ListAll(ctx context.Context) ([]*domain.CalculationRule, error)
}

// ClientLimitStore persists domain.ClientLimit keyed by domain.LimitKey.
type ClientLimitStore interface {
	Get(ctx context.Context, key domain.LimitKey) (*domain.ClientLimit, error)
	Save(ctx context.Context, limit *domain.ClientLimit) error
}

// AggregationUnitLimitStore persists domain.AggregationUnitLimit keyed by domain.LimitKey.
type AggregationUnitLimitStore interface {
	Get(ctx context.Context, key domain.LimitKey) (*domain.AggregationUnitLimit, error)
	Save(ctx context.Context, limit *domain.AggregationUnitLimit) error
}

// SecurityStore persists reference-data domain.Security records.
type SecurityStore interface {
	Get(ctx context.Context, internalID string) (*domain.Security, error)
	Save(ctx context.Context, sec *domain.Security) error
}

// IndexCompositionStore persists domain.IndexComposition records for basket
// expansion.
type IndexCompositionStore interface {
	Get(ctx context.Context, parentSecurityID string, asOf time.Time) (*domain.IndexComposition, error)
	Save(ctx context.Context, comp *domain.IndexComposition) error
}

// ContractStore persists domain.Contract records read by the inventory
// engine.
type ContractStore interface {
	ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]domain.Contract, error)
	Save(ctx context.Context, c domain.Contract) error
}

// ExternalAvailabilityStore persists inbound domain.ExternalAvailability
// feed records, last-value-wins per source.
type ExternalAvailabilityStore interface {
	Get(ctx context.Context, securityID string, businessDate time.Time, source string) (*domain.ExternalAvailability, error)
	ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]domain.ExternalAvailability, error)
	Save(ctx context.Context, ext domain.ExternalAvailability) error
}

// DedupStore tracks processed event IDs over a sliding window for the
// ingress dispatcher's duplicate-suppression rule (spec.md §4.1: dedup by
// eventId over a >= 24h window).
type DedupStore interface {
	SeenRecently(ctx context.Context, eventID string, window time.Duration) (bool, error)
	Record(ctx context.Context, eventID string, at time.Time) error
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

// Store aggregates every repository the engines need. Both memstore and
// sqlitestore provide one concrete type satisfying it.
type Store interface {
	Positions() PositionStore
	Inventory() InventoryStore
	Locates() LocateStore
	Rules() RuleStore
	ClientLimits() ClientLimitStore
	AULimits() AggregationUnitLimitStore
	Securities() SecurityStore
	IndexCompositions() IndexCompositionStore
	Contracts() ContractStore
	ExternalAvailability() ExternalAvailabilityStore
	Dedup() DedupStore
	Close() error
}
