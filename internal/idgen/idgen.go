// Package idgen generates the identifiers spec.md requires to be unique:
// eventId, requestId, orderId and correlationId.
package idgen

import "github.com/google/uuid"

// New returns a new random identifier suitable for eventId/requestId/orderId.
func New() string {
	return uuid.NewString()
}
