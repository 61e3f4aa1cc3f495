package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reclaimhub/wastex/internal/ledger"
	"github.com/reclaimhub/wastex/internal/model"
)

// batchWire is the raw batch tuple as returned by the registry contract.
type batchWire struct {
	Category       string `json:"category"`
	CurrentOwner   string `json:"currentOwner"`
	CommittedBuyer string `json:"committedBuyer"`
	BatchID        int64  `json:"batchId"`
	Quantity       int64  `json:"quantity"`
	Status         int64  `json:"status"`
	CreatedAt      int64  `json:"createdAt"`
}

// zeroAddress is how the contract represents "no committed buyer".
const zeroAddress = "0x0000000000000000000000000000000000000000"

// parseBatch translates raw ledger state into the domain model. Unrecognized
// status codes map to StatusUnknown; status polling must survive ledger
// schema evolution.
func parseBatch(raw json.RawMessage) (model.WasteBatch, error) {
	var wire batchWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.WasteBatch{}, fmt.Errorf("failed to parse batch state: %w", err)
	}

	committedBuyer := wire.CommittedBuyer
	if committedBuyer == zeroAddress {
		committedBuyer = ""
	}

	return model.WasteBatch{
		BatchID:        wire.BatchID,
		Category:       model.ParseCategory(wire.Category),
		Quantity:       wire.Quantity,
		CurrentOwner:   wire.CurrentOwner,
		CommittedBuyer: committedBuyer,
		Status:         model.StatusFromCode(wire.Status),
		CreatedAt:      time.Unix(wire.CreatedAt, 0).UTC(),
	}, nil
}

// Health describes the ledger connection and configuration state.
type Health struct {
	Endpoint   string
	Contract   string
	NetworkID  string
	Configured bool
	Connected  bool
}

// Reporter exposes ledger connectivity and configuration health.
type Reporter struct {
	client ledger.Client
}

// NewReporter creates a status reporter on the given ledger client.
func NewReporter(client ledger.Client) *Reporter {
	return &Reporter{client: client}
}

// Health probes the gateway. A failed probe is reported as disconnected, not
// as an error; health checks never fail hard.
func (r *Reporter) Health(ctx context.Context) Health {
	h := Health{
		Endpoint:   r.client.Endpoint(),
		Contract:   r.client.Contract(),
		Configured: r.client.Configured(),
	}

	if !h.Configured {
		if h.Contract == "" {
			h.Contract = "NOT_CONFIGURED"
		}
		return h
	}

	networkID, err := r.client.NetworkID(ctx)
	if err != nil {
		return h
	}

	h.Connected = true
	h.NetworkID = networkID
	return h
}
