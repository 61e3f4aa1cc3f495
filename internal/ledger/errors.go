package ledger

import "errors"

// Ledger boundary errors. Each kind is preserved so callers can pick a
// retry/reconciliation policy; none is ever collapsed into a generic string.
var (
	// ErrInvalidIdentity indicates a malformed seller/buyer address. The
	// call is rejected before any network traffic and is not retryable.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrLedgerUnavailable indicates the gateway cannot be reached or the
	// client is not configured.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrLedgerTimeout indicates the call did not confirm within its
	// deadline. The underlying mutation may still have landed.
	ErrLedgerTimeout = errors.New("ledger timeout")

	// ErrReverted indicates the ledger rejected the call, typically because
	// a transition precondition did not hold on-ledger.
	ErrReverted = errors.New("ledger transaction reverted")
)
