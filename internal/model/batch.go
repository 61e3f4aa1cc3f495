package model

import "time"

// BatchStatus is the lifecycle state of a waste batch as reported by the ledger.
type BatchStatus string

// Batch lifecycle states. Transitions are strictly forward:
// CREATED -> COMMITTED -> TRANSFERRED.
const (
	StatusCreated     BatchStatus = "CREATED"
	StatusCommitted   BatchStatus = "COMMITTED"
	StatusTransferred BatchStatus = "TRANSFERRED"

	// StatusUnknown covers ledger status codes this version does not
	// recognize. Schema evolution on the ledger must not break polling.
	StatusUnknown BatchStatus = "UNKNOWN"
)

// StatusFromCode maps the ledger's raw numeric status code to a BatchStatus.
func StatusFromCode(code int64) BatchStatus {
	switch code {
	case 0:
		return StatusCreated
	case 1:
		return StatusCommitted
	case 2:
		return StatusTransferred
	default:
		return StatusUnknown
	}
}

// WasteBatch is the unit tracked through the ownership-transfer lifecycle.
// The ledger is the single source of truth for every field; local copies are
// read-through projections only.
type WasteBatch struct {
	CreatedAt      time.Time
	Category       Category
	CurrentOwner   string
	CommittedBuyer string
	Status         BatchStatus
	BatchID        int64
	Quantity       int64
}

// CachedBatch is a read-through cache entry for a WasteBatch. Stale is set on
// every local mutation attempt and cleared only by a confirmed ledger read.
type CachedBatch struct {
	FetchedAt time.Time
	Batch     WasteBatch
	Stale     bool
}
