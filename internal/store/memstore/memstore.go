// Package memstore is an in-memory store.Store used by engine unit tests
// and by single-process deployments that don't need durability across
// restarts.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

// MemStore implements store.Store with plain Go maps guarded by a single
// mutex. Simplicity over throughput: this is a test double and a
// development fallback, not the production path.
type MemStore struct {
	mu sync.RWMutex

	positions       map[domain.PositionKey]*domain.Position
	inventory       map[domain.InventoryKey]*domain.InventoryAvailability
	locates         map[string]*domain.LocateRequest
	rules           map[string]*domain.CalculationRule // key: name|version
	clientLimits    map[domain.LimitKey]*domain.ClientLimit
	auLimits        map[domain.LimitKey]*domain.AggregationUnitLimit
	securities      map[string]*domain.Security
	indexComps      map[string][]*domain.IndexComposition
	contracts       map[string][]domain.Contract
	externalAvail   map[string][]domain.ExternalAvailability
	dedup           map[string]time.Time
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{
		positions:     make(map[domain.PositionKey]*domain.Position),
		inventory:     make(map[domain.InventoryKey]*domain.InventoryAvailability),
		locates:       make(map[string]*domain.LocateRequest),
		rules:         make(map[string]*domain.CalculationRule),
		clientLimits:  make(map[domain.LimitKey]*domain.ClientLimit),
		auLimits:      make(map[domain.LimitKey]*domain.AggregationUnitLimit),
		securities:    make(map[string]*domain.Security),
		indexComps:    make(map[string][]*domain.IndexComposition),
		contracts:     make(map[string][]domain.Contract),
		externalAvail: make(map[string][]domain.ExternalAvailability),
		dedup:         make(map[string]time.Time),
	}
}

func (s *MemStore) Positions() store.PositionStore                       { return positionRepo{s} }
func (s *MemStore) Inventory() store.InventoryStore                      { return inventoryRepo{s} }
func (s *MemStore) Locates() store.LocateStore                          { return locateRepo{s} }
func (s *MemStore) Rules() store.RuleStore                              { return ruleRepo{s} }
func (s *MemStore) ClientLimits() store.ClientLimitStore                { return clientLimitRepo{s} }
func (s *MemStore) AULimits() store.AggregationUnitLimitStore           { return auLimitRepo{s} }
func (s *MemStore) Securities() store.SecurityStore                     { return securityRepo{s} }
func (s *MemStore) IndexCompositions() store.IndexCompositionStore      { return indexCompRepo{s} }
func (s *MemStore) Contracts() store.ContractStore                      { return contractRepo{s} }
func (s *MemStore) ExternalAvailability() store.ExternalAvailabilityStore { return externalAvailRepo{s} }
func (s *MemStore) Dedup() store.DedupStore                             { return dedupRepo{s} }
func (s *MemStore) Close() error                                        { return nil }
