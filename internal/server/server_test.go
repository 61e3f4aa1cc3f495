package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaimhub/wastex/internal/ai"
	"github.com/reclaimhub/wastex/internal/config"
	"github.com/reclaimhub/wastex/internal/ledger"
	"github.com/reclaimhub/wastex/internal/lifecycle"
	"github.com/reclaimhub/wastex/internal/match"
	"github.com/reclaimhub/wastex/internal/model"
	"github.com/reclaimhub/wastex/internal/storage"
)

const (
	testSeller   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testBuyer    = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testOperator = "0xcccccccccccccccccccccccccccccccccccccccc"
)

// fakeLedger is an in-memory ledger.Client for server tests. Transition
// preconditions are enforced the way the real contract enforces them, so
// handlers see genuine revert outcomes.
type fakeLedger struct {
	mu         sync.Mutex
	batches    map[int64]*fakeBatch
	nextID     int64
	txCounter  int64
	submitErr  error
	readErr    error
	dropEvents bool
	configured bool
}

type fakeBatch struct {
	category       string
	currentOwner   string
	committedBuyer string
	quantity       int64
	status         int64
	createdAt      int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		batches:    make(map[int64]*fakeBatch),
		nextID:     1,
		configured: true,
	}
}

func (f *fakeLedger) Submit(_ context.Context, call string, args []any, signer ledger.Signer) (*ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return nil, f.submitErr
	}

	f.txCounter++
	receipt := &ledger.Receipt{
		TxID:    fmt.Sprintf("0xtx%04d", f.txCounter),
		Block:   f.txCounter,
		Success: true,
	}

	switch call {
	case "createWasteBatch":
		id := f.nextID
		f.nextID++
		f.batches[id] = &fakeBatch{
			category:     args[0].(string),
			quantity:     args[1].(int64),
			currentOwner: args[2].(string),
			createdAt:    time.Now().Unix(),
		}
		if !f.dropEvents {
			receipt.Events = []ledger.Event{{
				Name: "WasteBatchCreated",
				Fields: map[string]json.RawMessage{
					"batchId": json.RawMessage(fmt.Sprintf("%d", id)),
				},
			}}
		}
	case "commitToPurchase":
		batch, ok := f.batches[args[0].(int64)]
		if !ok || batch.status != 0 {
			receipt.Success = false
			break
		}
		batch.status = 1
		batch.committedBuyer = signer.Address
	case "transferWasteBatch":
		batch, ok := f.batches[args[0].(int64)]
		if !ok || batch.status != 1 || batch.currentOwner != signer.Address {
			receipt.Success = false
			break
		}
		batch.status = 2
		batch.currentOwner = batch.committedBuyer
	default:
		return nil, fmt.Errorf("unknown call %s", call)
	}

	return receipt, nil
}

func (f *fakeLedger) Read(_ context.Context, call string, args []any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return nil, f.readErr
	}
	if call != "getWasteBatch" {
		return nil, fmt.Errorf("unknown call %s", call)
	}

	id := args[0].(int64)
	batch, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %d", ledger.ErrReverted, id)
	}

	committed := batch.committedBuyer
	if committed == "" {
		committed = "0x0000000000000000000000000000000000000000"
	}

	return json.Marshal(map[string]any{
		"batchId":        id,
		"category":       batch.category,
		"quantity":       batch.quantity,
		"currentOwner":   batch.currentOwner,
		"committedBuyer": committed,
		"status":         batch.status,
		"createdAt":      batch.createdAt,
	})
}

func (f *fakeLedger) NetworkID(context.Context) (string, error) {
	if !f.configured {
		return "", ledger.ErrLedgerUnavailable
	}
	return "1337", nil
}

func (f *fakeLedger) Configured() bool { return f.configured }

func (f *fakeLedger) Endpoint() string {
	if !f.configured {
		return ""
	}
	return "http://gateway.test:8545"
}

func (f *fakeLedger) Contract() string {
	if !f.configured {
		return ""
	}
	return "0xdddddddddddddddddddddddddddddddddddddddd"
}

type testEnv struct {
	router *gin.Engine
	store  storage.Store
	chain  *fakeLedger
}

func newTestEnv(t *testing.T, classifier ai.Classifier, embedder ai.Embedder) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	chain := newFakeLedger()

	srv := New(config.ServerConfig{
		Addr:      ":0",
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}, Deps{
		Store:      store,
		Matcher:    match.New(classifier, embedder),
		Classifier: classifier,
		Embedder:   embedder,
		Manager: lifecycle.NewManager(chain, lifecycle.Config{
			Operator: ledger.Signer{Address: testOperator, Credential: "operator-secret"},
			Timeout:  5 * time.Second,
		}),
		Reporter: lifecycle.NewReporter(chain),
	})

	return &testEnv{router: srv.Router(), store: store, chain: chain}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":          email,
		"password":       "correct-horse",
		"company_name":   "Acme Reclaim",
		"wallet_address": testSeller,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token, _ := decodeBody(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, &ai.MockClassifier{Label: "Plastic"}, &ai.MockEmbedder{Default: []float64{1, 0, 0}})

	token := env.register(t, "ops@acme.example")

	t.Run("duplicate email rejected", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"email":    "ops@acme.example",
			"password": "correct-horse",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("login with valid credentials", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"email":    "Ops@Acme.example",
			"password": "correct-horse",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.NotEmpty(t, body["token"])
	})

	t.Run("login with wrong password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"email":    "ops@acme.example",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("me with token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ops@acme.example", decodeBody(t, w)["email"])
	})

	t.Run("me without token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("me with garbage token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, &ai.MockClassifier{Label: "Plastic"}, &ai.MockEmbedder{Default: []float64{1, 0, 0}})

	w := env.do(t, http.MethodPost, "/api/waste/analyze", "", gin.H{
		"description": "HDPE offcuts from injection molding",
		"location":    "Rotterdam",
		"quantity":    1000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, "Plastic", body["category"])
	assert.InDelta(t, 1000*model.CategoryPlastic.PricePerKg(), body["revenue"].(float64), 0.01)

	t.Run("classifier down falls back to unknown", func(t *testing.T) {
		down := newTestEnv(t, &ai.MockClassifier{Err: ai.ErrClassifierUnavailable}, &ai.MockEmbedder{Default: []float64{1, 0, 0}})
		w := down.do(t, http.MethodPost, "/api/waste/analyze", "", gin.H{
			"description": "rusted iron pipes",
			"quantity":    500,
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(model.CategoryUnknown), decodeBody(t, w)["category"])
	})

	t.Run("missing quantity rejected", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/waste/analyze", "", gin.H{
			"description": "mixed scrap",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListingsAndStats(t *testing.T) {
	env := newTestEnv(t, &ai.MockClassifier{Label: "Metal"}, &ai.MockEmbedder{Default: []float64{1, 0, 0}})
	token := env.register(t, "seller@mill.example")

	w := env.do(t, http.MethodPost, "/api/marketplace/listing", token, gin.H{
		"description": "steel shavings from CNC milling",
		"location":    "Essen",
		"hazard":      "Low",
		"quantity":    250,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decodeBody(t, w)
	assert.Equal(t, "memory", created["persisted_by"])
	listing := created["listing"].(map[string]any)
	assert.Equal(t, "Metal", listing["category"])
	assert.NotEmpty(t, listing["id"])

	t.Run("unauthenticated listing rejected", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/marketplace/listing", "", gin.H{
			"description": "more shavings",
			"quantity":    10,
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("listings include the new entry", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/marketplace/listings", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Len(t, body["listings"], 1)
		assert.Equal(t, "memory", body["source"])
	})

	t.Run("stats count by category", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/marketplace/stats", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.EqualValues(t, 1, body["total_available"])
		byCategory := body["by_category"].(map[string]any)
		assert.EqualValues(t, 1, byCategory["Metal"])
	})

	t.Run("transaction marks listing sold", func(t *testing.T) {
		id := listing["id"].(string)
		w := env.do(t, http.MethodPost, "/api/marketplace/transaction", token, gin.H{
			"listing_id":  id,
			"seller_id":   "seller-1",
			"category":    "Metal",
			"total_price": 112.5,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = env.do(t, http.MethodGet, "/api/marketplace/stats", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 0, decodeBody(t, w)["total_available"])
	})
}

func TestMatchEndpoint(t *testing.T) {
	embedder := &ai.MockEmbedder{
		Vectors: map[string][]float64{
			"shredded PET bottles": {1, 0, 0},
		},
		Default: []float64{0, 1, 0},
	}
	env := newTestEnv(t, &ai.MockClassifier{Label: "Plastic"}, embedder)

	_, err := env.store.SaveBuyerNeed(context.Background(), &model.BuyerNeed{
		ID:         "need-1",
		BuyerID:    "buyer-1",
		LookingFor: "PET flakes for extrusion",
		Embedding:  []float64{1, 0, 0},
		Active:     true,
	})
	require.NoError(t, err)
	_, err = env.store.SaveBuyerNeed(context.Background(), &model.BuyerNeed{
		ID:         "need-2",
		BuyerID:    "buyer-2",
		LookingFor: "waste oil",
		Embedding:  []float64{0, 0, 1},
		Active:     true,
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/match", "", gin.H{
		"description": "shredded PET bottles",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	matches := body["matches"].([]any)
	require.Len(t, matches, 1)
	top := matches[0].(map[string]any)
	assert.Equal(t, "buyer-1", top["buyer_id"])
	assert.Equal(t, "Plastic", top["category_detected"])
	assert.Equal(t, 0.99, top["match_score"])

	t.Run("embedder down returns 503", func(t *testing.T) {
		down := newTestEnv(t, &ai.MockClassifier{Label: "Plastic"}, &ai.MockEmbedder{Err: ai.ErrEmbedderUnavailable})
		w := down.do(t, http.MethodPost, "/api/match", "", gin.H{
			"description": "anything",
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestBuyerNeeds(t *testing.T) {
	env := newTestEnv(t, &ai.MockClassifier{Label: "Plastic"}, &ai.MockEmbedder{Default: []float64{1, 0, 0}})
	token := env.register(t, "buyer@plant.example")

	w := env.do(t, http.MethodPost, "/api/buyers/needs", token, gin.H{
		"looking_for": "clean polypropylene regrind",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	need := decodeBody(t, w)["need"].(map[string]any)
	needID := need["id"].(string)
	require.NotEmpty(t, needID)

	t.Run("withdraw deactivates", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/buyers/needs/"+needID, token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		active, err := env.store.GetActiveBuyerNeeds(context.Background())
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("withdraw unknown need", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/buyers/needs/nope", token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("embedder down rejects the need", func(t *testing.T) {
		down := newTestEnv(t, &ai.MockClassifier{Label: "Plastic"}, &ai.MockEmbedder{Err: ai.ErrEmbedderUnavailable})
		downToken := down.register(t, "buyer@plant.example")
		w := down.do(t, http.MethodPost, "/api/buyers/needs", downToken, gin.H{
			"looking_for": "anything",
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestBatchLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t, &ai.MockClassifier{Label: "Metal"}, &ai.MockEmbedder{Default: []float64{1, 0, 0}})
	token := env.register(t, "ops@acme.example")

	w := env.do(t, http.MethodPost, "/api/blockchain/batch", token, gin.H{
		"category":       "Metal",
		"quantity":       500,
		"seller_address": testSeller,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	batchID := int64(decodeBody(t, w)["batch_id"].(float64))
	assert.EqualValues(t, 1, batchID)

	t.Run("status reads CREATED", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/blockchain/batch/1", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, "CREATED", body["status"])
		assert.Equal(t, testSeller, body["current_owner"])
		assert.Empty(t, body["committed_buyer"])
	})

	t.Run("transfer before commit is rejected by the ledger", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/blockchain/transfer", token, gin.H{
			"batch_id":   1,
			"address":    testSeller,
			"credential": "seller-secret",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("commit then transfer", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/blockchain/commit", token, gin.H{
			"batch_id":   1,
			"address":    testBuyer,
			"credential": "buyer-secret",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(t, http.MethodPost, "/api/blockchain/transfer", token, gin.H{
			"batch_id":   1,
			"address":    testSeller,
			"credential": "seller-secret",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(t, http.MethodGet, "/api/blockchain/batch/1", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "TRANSFERRED", body["status"])
		assert.Equal(t, testBuyer, body["current_owner"])
	})

	t.Run("invalid identity rejected before submission", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/blockchain/batch", token, gin.H{
			"category":       "Metal",
			"quantity":       10,
			"seller_address": "bogus",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Len(t, env.chain.batches, 1)
	})

	t.Run("timeout surfaces outcome unknown", func(t *testing.T) {
		env.chain.submitErr = ledger.ErrLedgerTimeout
		defer func() { env.chain.submitErr = nil }()

		w := env.do(t, http.MethodPost, "/api/blockchain/commit", token, gin.H{
			"batch_id":   1,
			"address":    testBuyer,
			"credential": "buyer-secret",
		})
		require.Equal(t, http.StatusGatewayTimeout, w.Code, w.Body.String())
		assert.Equal(t, true, decodeBody(t, w)["outcome_unknown"])
	})

	t.Run("missing creation event reported distinctly", func(t *testing.T) {
		env.chain.dropEvents = true
		defer func() { env.chain.dropEvents = false }()

		w := env.do(t, http.MethodPost, "/api/blockchain/batch", token, gin.H{
			"category":       "Metal",
			"quantity":       10,
			"seller_address": testSeller,
		})
		require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
		assert.Equal(t, "event extraction failed", decodeBody(t, w)["error"])
		// The batch landed despite the missing event.
		assert.Len(t, env.chain.batches, 2)
	})

	t.Run("invalid batch id in path", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/blockchain/batch/abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStatusEndpoints(t *testing.T) {
	env := newTestEnv(t, &ai.MockClassifier{Label: "Plastic"}, &ai.MockEmbedder{Default: []float64{1, 0, 0}})

	t.Run("ledger status when configured", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/blockchain/status", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["configured"])
		assert.Equal(t, true, body["connected"])
		assert.Equal(t, "1337", body["network_id"])
	})

	t.Run("ledger status when unconfigured", func(t *testing.T) {
		env.chain.configured = false
		defer func() { env.chain.configured = true }()

		w := env.do(t, http.MethodGet, "/api/blockchain/status", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["configured"])
		assert.Equal(t, false, body["connected"])
		assert.Equal(t, "NOT_CONFIGURED", body["contract"])
	})

	t.Run("db status", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/db/status", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "memory", body["backend"])
		assert.Equal(t, false, body["durable"])
	})

	t.Run("health", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decodeBody(t, w)["status"])
	})
}
