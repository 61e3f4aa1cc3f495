package storage

import (
	"context"
	"testing"
	"time"

	"github.com/reclaimhub/wastex/internal/common"
	"github.com/reclaimhub/wastex/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFixtures runs the same contract tests against both backends.
func storeFixtures(t *testing.T) map[Backend]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(context.Background()))
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[Backend]Store{
		BackendDurable:   sqlite,
		BackendEphemeral: NewMemoryStore(),
	}
}

func TestUserRoundTrip(t *testing.T) {
	for backend, store := range storeFixtures(t) {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()

			persistedBy, err := store.CreateUser(ctx, &model.User{
				ID:            "u1",
				Email:         "ops@scrapco.example",
				PasswordHash:  "hashed",
				CompanyName:   "ScrapCo",
				WalletAddress: "0xab5801a7d398351b8be11c439e05c5b3259aec9b",
			})
			require.NoError(t, err)
			assert.Equal(t, backend, persistedBy, "writes must report which backend persisted them")

			byEmail, err := store.GetUserByEmail(ctx, "ops@scrapco.example")
			require.NoError(t, err)
			assert.Equal(t, "u1", byEmail.ID)
			assert.Equal(t, "ScrapCo", byEmail.CompanyName)

			byID, err := store.GetUserByID(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, byEmail.Email, byID.Email)

			_, err = store.CreateUser(ctx, &model.User{ID: "u2", Email: "ops@scrapco.example", PasswordHash: "x"})
			require.ErrorIs(t, err, common.ErrDuplicateEntry)

			_, err = store.GetUserByEmail(ctx, "nobody@example.com")
			require.ErrorIs(t, err, common.ErrNotFound)
		})
	}
}

func TestListingLifecycle(t *testing.T) {
	for backend, store := range storeFixtures(t) {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()

			listing := &model.Listing{
				ID:          "l1",
				SellerID:    "u1",
				Description: "baled cardboard",
				Location:    "Rotterdam",
				Category:    model.CategoryPaper,
				Quantity:    1200,
				Embedding:   []float64{0.1, 0.2},
			}

			persistedBy, err := store.SaveListing(ctx, listing)
			require.NoError(t, err)
			assert.Equal(t, backend, persistedBy)

			available, err := store.GetAvailableListings(ctx)
			require.NoError(t, err)
			require.Len(t, available, 1)
			assert.Equal(t, model.ListingAvailable, available[0].Status)
			assert.Equal(t, []float64{0.1, 0.2}, available[0].Embedding)

			_, err = store.UpdateListingStatus(ctx, "l1", model.ListingSold)
			require.NoError(t, err)

			available, err = store.GetAvailableListings(ctx)
			require.NoError(t, err)
			assert.Empty(t, available)

			all, err := store.GetListings(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, model.ListingSold, all[0].Status)

			_, err = store.UpdateListingStatus(ctx, "missing", model.ListingSold)
			require.ErrorIs(t, err, common.ErrNotFound)
		})
	}
}

func TestBuyerNeedDeactivation(t *testing.T) {
	for backend, store := range storeFixtures(t) {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()

			base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
			needs := []*model.BuyerNeed{
				{ID: "n1", BuyerID: "b1", LookingFor: "hdpe regrind", Active: true, CreatedAt: base},
				{ID: "n2", BuyerID: "b2", LookingFor: "copper scrap", Active: true, CreatedAt: base.Add(time.Hour)},
			}
			for _, need := range needs {
				_, err := store.SaveBuyerNeed(ctx, need)
				require.NoError(t, err)
			}

			active, err := store.GetActiveBuyerNeeds(ctx)
			require.NoError(t, err)
			require.Len(t, active, 2)
			assert.Equal(t, "n1", active[0].ID, "needs come back oldest first")

			_, err = store.DeactivateBuyerNeed(ctx, "n1")
			require.NoError(t, err)

			active, err = store.GetActiveBuyerNeeds(ctx)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, "n2", active[0].ID)

			// Withdrawn needs are kept, not deleted.
			all, err := store.GetBuyerNeeds(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestEmbeddingUpdate(t *testing.T) {
	for backend, store := range storeFixtures(t) {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()

			_, err := store.SaveBuyerNeed(ctx, &model.BuyerNeed{
				ID: "n1", BuyerID: "b1", LookingFor: "glass cullet", Active: true,
			})
			require.NoError(t, err)

			_, err = store.UpdateBuyerNeedEmbedding(ctx, "n1", []float64{0.5, 0.6})
			require.NoError(t, err)

			needsList, err := store.GetActiveBuyerNeeds(ctx)
			require.NoError(t, err)
			require.Len(t, needsList, 1)
			assert.Equal(t, []float64{0.5, 0.6}, needsList[0].Embedding)
		})
	}
}

func TestTransactionsAndStats(t *testing.T) {
	for backend, store := range storeFixtures(t) {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()

			_, err := store.SaveListing(ctx, &model.Listing{ID: "l1", SellerID: "u1", Description: "pallets", Category: model.CategoryWood, Quantity: 40})
			require.NoError(t, err)
			_, err = store.SaveListing(ctx, &model.Listing{ID: "l2", SellerID: "u1", Description: "offcuts", Category: model.CategoryWood, Quantity: 15})
			require.NoError(t, err)
			_, err = store.SaveListing(ctx, &model.Listing{ID: "l3", SellerID: "u2", Description: "drums", Category: model.CategoryChemical, Quantity: 8, Status: model.ListingSold})
			require.NoError(t, err)

			counts, err := store.CategoryCounts(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, counts[model.CategoryWood])
			assert.Zero(t, counts[model.CategoryChemical], "sold listings are excluded from stats")

			persistedBy, err := store.SaveTransaction(ctx, &model.TransactionRecord{
				ID: "t1", ListingID: "l3", BuyerID: "u3", SellerID: "u2",
				Category: model.CategoryChemical, TotalPrice: 960, BatchID: 7,
			})
			require.NoError(t, err)
			assert.Equal(t, backend, persistedBy)

			txns, err := store.GetTransactions(ctx)
			require.NoError(t, err)
			require.Len(t, txns, 1)
			assert.Equal(t, int64(7), txns[0].BatchID)
		})
	}
}

func TestSQLiteMigrations(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running migrations again is a no-op.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestNewSQLiteStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	require.Error(t, err)
}
