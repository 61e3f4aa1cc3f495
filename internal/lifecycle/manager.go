// Package lifecycle implements the waste batch lifecycle protocol against the
// external ledger: creation, purchase commitment, ownership transfer, and
// status reconciliation.
//
// The manager enforces no transitions locally. The ledger is the only party
// that can make a transition atomic and final; a local precondition check
// would just be a second, possibly stale, source of truth. Every mutation is
// submitted as-is and whatever the ledger reports is surfaced.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reclaimhub/wastex/internal/common"
	"github.com/reclaimhub/wastex/internal/ledger"
	"github.com/reclaimhub/wastex/internal/model"
)

// ErrEventExtraction indicates the creation event could not be recovered from
// a confirmed receipt. Distinct from transaction failure: the batch may exist
// on-ledger even though its ID was not recovered.
var ErrEventExtraction = errors.New("event extraction failed")

// Ledger call names understood by the registry contract.
const (
	callCreate   = "createWasteBatch"
	callCommit   = "commitToPurchase"
	callTransfer = "transferWasteBatch"
	callGetBatch = "getWasteBatch"

	// eventBatchCreated carries the ledger-assigned batch ID.
	eventBatchCreated = "WasteBatchCreated"
)

// Manager owns the batch lifecycle operations. It holds no authoritative
// state: the cache is a read-through projection flagged stale on every
// mutation attempt and never consulted before submitting.
type Manager struct {
	client   ledger.Client
	cache    map[int64]model.CachedBatch
	operator ledger.Signer
	timeout  time.Duration
	cacheMu  sync.RWMutex
}

// Config holds lifecycle manager settings.
type Config struct {
	// Operator is the registry operator credential. It signs batch creation
	// only; commits and transfers are signed by the acting party.
	Operator ledger.Signer
	// Timeout bounds each ledger operation. Expiry means the outcome is
	// unknown, not that the mutation failed.
	Timeout time.Duration
}

// NewManager creates a lifecycle manager on the given ledger client.
func NewManager(client ledger.Client, cfg Config) *Manager {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Manager{
		client:   client,
		operator: cfg.Operator,
		timeout:  timeout,
		cache:    make(map[int64]model.CachedBatch),
	}
}

// Create submits a new batch for sellerIdentity and returns the
// ledger-assigned batch ID recovered from the creation event.
func (m *Manager) Create(ctx context.Context, category model.Category, quantity int64, sellerIdentity string) (int64, error) {
	if err := ledger.CheckIdentity(sellerIdentity); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	slog.Info("Creating batch on ledger",
		"category", category,
		"quantity", quantity,
		"seller", sellerIdentity)

	receipt, err := m.client.Submit(ctx, callCreate, []any{string(category), quantity, sellerIdentity}, m.operator)
	if err != nil {
		return 0, m.mapSubmitError(err, "create")
	}

	if !receipt.Success {
		return 0, fmt.Errorf("%w: create tx %s", ledger.ErrReverted, receipt.TxID)
	}

	batchID, err := extractBatchID(receipt)
	if err != nil {
		// The mutation confirmed; only the side channel failed. Callers
		// recover the ID by scanning recent batches, not by resubmitting.
		return 0, fmt.Errorf("%w: tx %s confirmed but %v", ErrEventExtraction, receipt.TxID, err)
	}

	m.markStale(batchID)

	slog.Info("Batch created", "batch_id", batchID, "tx", receipt.TxID)

	return batchID, nil
}

// Commit submits buyer's purchase commitment for batchID, signed with the
// buyer's own credential. Validity against the CREATED state is checked by
// the ledger, not here.
func (m *Manager) Commit(ctx context.Context, batchID int64, buyer ledger.Signer) error {
	if err := ledger.CheckIdentity(buyer.Address); err != nil {
		return err
	}

	m.markStale(batchID)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	slog.Info("Committing to batch", "batch_id", batchID, "buyer", buyer.Address)

	receipt, err := m.client.Submit(ctx, callCommit, []any{batchID}, buyer)
	if err != nil {
		return m.mapSubmitError(err, "commit")
	}

	if !receipt.Success {
		return fmt.Errorf("%w: commit tx %s", ledger.ErrReverted, receipt.TxID)
	}

	return nil
}

// Transfer submits the seller's ownership transfer for batchID, signed with
// the seller's own credential. Valid only against COMMITTED; the ledger
// enforces that.
func (m *Manager) Transfer(ctx context.Context, batchID int64, seller ledger.Signer) error {
	if err := ledger.CheckIdentity(seller.Address); err != nil {
		return err
	}

	m.markStale(batchID)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	slog.Info("Transferring batch", "batch_id", batchID, "seller", seller.Address)

	receipt, err := m.client.Submit(ctx, callTransfer, []any{batchID}, seller)
	if err != nil {
		return m.mapSubmitError(err, "transfer")
	}

	if !receipt.Success {
		return fmt.Errorf("%w: transfer tx %s", ledger.ErrReverted, receipt.TxID)
	}

	return nil
}

// Status reads the batch from the ledger. Pure read: safe to abandon, safe to
// repeat, and the reconciliation step after any unknown-outcome mutation.
func (m *Manager) Status(ctx context.Context, batchID int64) (model.WasteBatch, error) {
	raw, err := m.client.Read(ctx, callGetBatch, []any{batchID})
	if err != nil {
		return model.WasteBatch{}, err
	}

	batch, err := parseBatch(raw)
	if err != nil {
		return model.WasteBatch{}, err
	}

	m.cacheMu.Lock()
	m.cache[batchID] = model.CachedBatch{
		Batch:     batch,
		FetchedAt: time.Now(),
		Stale:     false,
	}
	m.cacheMu.Unlock()

	return batch, nil
}

// Cached returns the read-through cache entry for batchID, if any. The entry
// is advisory for display latency only; it never gates a submission.
func (m *Manager) Cached(batchID int64) (model.CachedBatch, bool) {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()

	entry, ok := m.cache[batchID]
	return entry, ok
}

// markStale flags the cache entry for batchID ahead of a mutation attempt.
func (m *Manager) markStale(batchID int64) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	entry := m.cache[batchID]
	entry.Stale = true
	m.cache[batchID] = entry
}

// mapSubmitError attaches the unknown-outcome marker to failures where the
// mutation may have landed. Timeouts and cancellations leave the ledger in an
// undetermined state; connectivity refusals before submission do not.
func (m *Manager) mapSubmitError(err error, op string) error {
	if errors.Is(err, ledger.ErrLedgerTimeout) || errors.Is(err, context.Canceled) {
		slog.Warn("Ledger operation outcome unknown, reconcile via status read",
			"op", op,
			"error", err)
		return common.OutcomeUnknown(err)
	}
	return err
}

// extractBatchID recovers the assigned batch ID from the creation event.
func extractBatchID(receipt *ledger.Receipt) (int64, error) {
	for _, ev := range receipt.Events {
		if ev.Name != eventBatchCreated {
			continue
		}

		raw, ok := ev.Fields["batchId"]
		if !ok {
			return 0, fmt.Errorf("event %s missing batchId field", eventBatchCreated)
		}

		var id int64
		if err := json.Unmarshal(raw, &id); err != nil {
			return 0, fmt.Errorf("malformed batchId field: %w", err)
		}
		return id, nil
	}

	return 0, fmt.Errorf("no %s event in receipt", eventBatchCreated)
}
