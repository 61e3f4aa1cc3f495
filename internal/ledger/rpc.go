package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// rpcClient implements Client over JSON-RPC 2.0 against a registry gateway.
type rpcClient struct {
	httpClient *http.Client
	endpoint   string
	contract   string
	nextID     atomic.Int64
}

// NewClient creates a registry gateway client. Endpoint or contract may be
// empty; the client then reports itself unconfigured and every call fails
// with ErrLedgerUnavailable instead of panicking.
func NewClient(cfg Config) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &rpcClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		contract: cfg.Contract,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Configured reports whether both endpoint and contract address are set.
func (c *rpcClient) Configured() bool {
	return c.endpoint != "" && strings.HasPrefix(c.contract, "0x")
}

// Endpoint returns the gateway endpoint URL.
func (c *rpcClient) Endpoint() string {
	return c.endpoint
}

// Contract returns the registry contract address.
func (c *rpcClient) Contract() string {
	return c.contract
}

type rpcRequest struct {
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int64           `json:"id"`
}

type submitParams struct {
	Contract   string `json:"contract"`
	Call       string `json:"call"`
	Args       []any  `json:"args"`
	From       string `json:"from"`
	Credential string `json:"credential"`
}

type readParams struct {
	Contract string `json:"contract"`
	Call     string `json:"call"`
	Args     []any  `json:"args"`
}

type receiptWire struct {
	TxID   string `json:"txId"`
	Events []struct {
		Name   string                     `json:"name"`
		Fields map[string]json.RawMessage `json:"fields"`
	} `json:"events"`
	Block   int64 `json:"blockNumber"`
	Success bool  `json:"success"`
}

// Submit sends a state-changing call and blocks until the gateway returns a
// confirmed receipt or the context expires.
func (c *rpcClient) Submit(ctx context.Context, call string, args []any, signer Signer) (*Receipt, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: endpoint or contract not configured", ErrLedgerUnavailable)
	}
	if err := CheckIdentity(signer.Address); err != nil {
		return nil, err
	}

	raw, err := c.do(ctx, "registry_submit", submitParams{
		Contract:   c.contract,
		Call:       call,
		Args:       args,
		From:       signer.Address,
		Credential: signer.Credential,
	})
	if err != nil {
		return nil, err
	}

	var wire receiptWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse receipt: %w", err)
	}

	receipt := &Receipt{
		TxID:    wire.TxID,
		Block:   wire.Block,
		Success: wire.Success,
	}
	for _, ev := range wire.Events {
		receipt.Events = append(receipt.Events, Event{Name: ev.Name, Fields: ev.Fields})
	}

	return receipt, nil
}

// Read executes a non-mutating call and returns the raw result.
func (c *rpcClient) Read(ctx context.Context, call string, args []any) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: endpoint or contract not configured", ErrLedgerUnavailable)
	}

	return c.do(ctx, "registry_read", readParams{
		Contract: c.contract,
		Call:     call,
		Args:     args,
	})
}

// NetworkID returns the gateway's network identifier. Used for health checks.
func (c *rpcClient) NetworkID(ctx context.Context) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("%w: endpoint not configured", ErrLedgerUnavailable)
	}

	raw, err := c.do(ctx, "registry_networkId", []any{})
	if err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("failed to parse network id: %w", err)
	}
	return id, nil
}

// do performs one JSON-RPC exchange, mapping transport failures to the error
// kinds the caller branches on.
func (c *rpcClient) do(ctx context.Context, method string, params any) (json.RawMessage, error) {
	jsonBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrLedgerTimeout, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gateway error (status %d): %s", ErrLedgerUnavailable, resp.StatusCode, string(body))
	}

	var response rpcResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if response.Error != nil {
		if strings.Contains(strings.ToLower(response.Error.Message), "revert") {
			return nil, fmt.Errorf("%w: %s", ErrReverted, response.Error.Message)
		}
		return nil, fmt.Errorf("gateway rpc error %d: %s", response.Error.Code, response.Error.Message)
	}

	return response.Result, nil
}
