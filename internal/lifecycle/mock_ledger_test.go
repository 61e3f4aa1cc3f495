package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/reclaimhub/wastex/internal/ledger"
)

// mockLedger is an in-memory registry implementing ledger.Client for tests.
// It enforces the same transition preconditions the real contract does, so
// lifecycle tests observe genuine ledger-level rejections.
type mockLedger struct {
	batches    map[int64]*mockBatch
	submitErr  error
	readErr    error
	endpoint   string
	contract   string
	networkID  string
	nextID     int64
	txCounter  int64
	dropEvents bool
	mu         sync.Mutex
}

type mockBatch struct {
	category       string
	currentOwner   string
	committedBuyer string
	status         int64
	quantity       int64
	createdAt      int64
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		batches:   make(map[int64]*mockBatch),
		endpoint:  "http://127.0.0.1:8545",
		contract:  "0x00000000000000000000000000000000000000aa",
		networkID: "31337",
		nextID:    1,
	}
}

func (m *mockLedger) Configured() bool { return m.endpoint != "" && m.contract != "" }
func (m *mockLedger) Endpoint() string { return m.endpoint }
func (m *mockLedger) Contract() string { return m.contract }

func (m *mockLedger) NetworkID(_ context.Context) (string, error) {
	if m.networkID == "" {
		return "", ledger.ErrLedgerUnavailable
	}
	return m.networkID, nil
}

func (m *mockLedger) Submit(_ context.Context, call string, args []any, signer ledger.Signer) (*ledger.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitErr != nil {
		return nil, m.submitErr
	}

	m.txCounter++
	receipt := &ledger.Receipt{
		TxID:    fmt.Sprintf("0xtx%04d", m.txCounter),
		Success: true,
	}

	switch call {
	case callCreate:
		id := m.nextID
		m.nextID++
		m.batches[id] = &mockBatch{
			category:     args[0].(string),
			quantity:     toInt64(args[1]),
			currentOwner: args[2].(string),
			status:       0,
			createdAt:    1700000000,
		}
		if !m.dropEvents {
			idJSON, _ := json.Marshal(id)
			receipt.Events = append(receipt.Events, ledger.Event{
				Name:   eventBatchCreated,
				Fields: map[string]json.RawMessage{"batchId": idJSON},
			})
		}
	case callCommit:
		batch, ok := m.batches[toInt64(args[0])]
		if !ok {
			return nil, fmt.Errorf("%w: batch does not exist", ledger.ErrReverted)
		}
		if batch.status != 0 {
			return nil, fmt.Errorf("%w: batch not in CREATED state", ledger.ErrReverted)
		}
		batch.status = 1
		batch.committedBuyer = signer.Address
	case callTransfer:
		batch, ok := m.batches[toInt64(args[0])]
		if !ok {
			return nil, fmt.Errorf("%w: batch does not exist", ledger.ErrReverted)
		}
		if batch.status != 1 {
			return nil, fmt.Errorf("%w: batch not in COMMITTED state", ledger.ErrReverted)
		}
		if batch.currentOwner != signer.Address {
			return nil, fmt.Errorf("%w: only the owner can transfer", ledger.ErrReverted)
		}
		batch.status = 2
		batch.currentOwner = batch.committedBuyer
	default:
		return nil, fmt.Errorf("unknown call %q", call)
	}

	return receipt, nil
}

func (m *mockLedger) Read(_ context.Context, call string, args []any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		return nil, m.readErr
	}
	if call != callGetBatch {
		return nil, fmt.Errorf("unknown call %q", call)
	}

	id := toInt64(args[0])
	batch, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch does not exist", ledger.ErrReverted)
	}

	committedBuyer := batch.committedBuyer
	if committedBuyer == "" {
		committedBuyer = zeroAddress
	}

	return json.Marshal(map[string]any{
		"batchId":        id,
		"category":       batch.category,
		"quantity":       batch.quantity,
		"currentOwner":   batch.currentOwner,
		"committedBuyer": committedBuyer,
		"status":         batch.status,
		"createdAt":      batch.createdAt,
	})
}

// setStatus force-sets a raw status code, used to simulate ledger schema
// evolution.
func (m *mockLedger) setStatus(id, code int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[id].status = code
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
