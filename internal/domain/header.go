// Package domain defines the IMS entities: flat structs with an embedded
// audit header, replacing the deep entity inheritance (BaseEntity, etc.)
// spec.md §9 calls out for re-architecture. No entity here implements
// polymorphic dispatch; every engine owns exactly one entity type (spec.md §3
// "Ownership").
package domain

import "time"

// AuditHeader is the mixin of audit fields embedded into every mutable
// entity (Position, InventoryAvailability, ClientLimit, AggregationUnitLimit,
// LocateRequest). Version backs the Store's optimistic-concurrency primitive.
type AuditHeader struct {
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// Touch bumps the version and stamps UpdatedAt/UpdatedBy. Called by the
// owning engine immediately before a persist.
func (h *AuditHeader) Touch(now time.Time, by string) {
	h.Version++
	h.UpdatedAt = now
	h.UpdatedBy = by
}

// Stamp initializes CreatedAt/CreatedBy/UpdatedAt/UpdatedBy and sets Version
// to 1, for brand-new entities.
func (h *AuditHeader) Stamp(now time.Time, by string) {
	h.Version = 1
	h.CreatedAt = now
	h.CreatedBy = by
	h.UpdatedAt = now
	h.UpdatedBy = by
}

// StampOrTouch calls Stamp for a never-persisted entity (Version == 0) or
// Touch otherwise. Engines call this immediately before every Save so
// callers don't need to track whether a record is new.
func (h *AuditHeader) StampOrTouch(now time.Time, by string) {
	if h.Version == 0 {
		h.Stamp(now, by)
		return
	}
	h.Touch(now, by)
}
