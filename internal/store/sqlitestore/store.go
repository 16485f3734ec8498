package sqlitestore

import (
	"github.com/primebrokerage/ims-core/internal/store"
)

// SQLiteStore implements store.Store; Outbox returns an
// eventbus.OutboxStore over the same database.
type SQLiteStore struct {
	db *DB
}

// New opens cfg and returns a ready SQLiteStore.
func New(cfg Config) (*SQLiteStore, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Positions() store.PositionStore                        { return positionRepo{s.db} }
func (s *SQLiteStore) Inventory() store.InventoryStore                       { return inventoryRepo{s.db} }
func (s *SQLiteStore) Locates() store.LocateStore                           { return locateRepo{s.db} }
func (s *SQLiteStore) Rules() store.RuleStore                               { return ruleRepo{s.db} }
func (s *SQLiteStore) ClientLimits() store.ClientLimitStore                 { return clientLimitRepo{s.db} }
func (s *SQLiteStore) AULimits() store.AggregationUnitLimitStore            { return auLimitRepo{s.db} }
func (s *SQLiteStore) Securities() store.SecurityStore                      { return securityRepo{s.db} }
func (s *SQLiteStore) IndexCompositions() store.IndexCompositionStore       { return indexCompRepo{s.db} }
func (s *SQLiteStore) Contracts() store.ContractStore                       { return contractRepo{s.db} }
func (s *SQLiteStore) ExternalAvailability() store.ExternalAvailabilityStore { return externalAvailRepo{s.db} }
func (s *SQLiteStore) Dedup() store.DedupStore                              { return dedupRepo{s.db} }
func (s *SQLiteStore) Outbox() *outboxRepo                                  { return &outboxRepo{s.db} }
func (s *SQLiteStore) Close() error                                         { return s.db.Close() }

// DB returns the underlying connection wrapper, for callers (such as
// internal/snapshot) that need VACUUM INTO-style direct access alongside
// the repository interfaces above.
func (s *SQLiteStore) DB() *DB { return s.db }
