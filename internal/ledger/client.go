// Package ledger defines the boundary to the external ownership-transfer
// ledger and a JSON-RPC client for the registry gateway that fronts it.
//
// The boundary is deliberately chain-agnostic: the core submits named calls
// with positional arguments and parses receipts; it never sees transaction
// encoding or contract ABIs.
package ledger

import (
	"context"
	"encoding/json"
	"time"
)

// Signer identifies the party a state-changing call acts as. The credential
// is the signing secret registered with the gateway for that address; the
// gateway signs, the core never touches key material beyond carrying it.
type Signer struct {
	Address    string
	Credential string
}

// Event is an emitted ledger event with named fields.
type Event struct {
	Fields map[string]json.RawMessage
	Name   string
}

// Receipt is the confirmed outcome of a submitted ledger call.
type Receipt struct {
	TxID    string
	Events  []Event
	Block   int64
	Success bool
}

// Client is the transport boundary to the ledger. Submit blocks until the
// call is confirmed or the context expires; Read never mutates state and can
// be abandoned freely.
type Client interface {
	Submit(ctx context.Context, call string, args []any, signer Signer) (*Receipt, error)
	Read(ctx context.Context, call string, args []any) (json.RawMessage, error)
	NetworkID(ctx context.Context) (string, error)
	Configured() bool
	Endpoint() string
	Contract() string
}

// Config holds the ledger connection settings.
type Config struct {
	Endpoint string
	Contract string
	Timeout  time.Duration
}
