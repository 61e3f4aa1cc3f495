// Package storage persists marketplace state: users, listings, buyer needs,
// and local transaction records. Batch lifecycle state lives on the ledger,
// never here.
package storage

import (
	"context"

	"github.com/reclaimhub/wastex/internal/model"
)

// Backend names which storage backend actually persisted a write. The backend
// is selected once at startup; writes report it explicitly rather than the
// caller inferring durability from error handling.
type Backend string

// Storage backend variants.
const (
	// BackendDurable is the sqlite-backed store.
	BackendDurable Backend = "sqlite"
	// BackendEphemeral is the in-memory store. Data does not survive the
	// process.
	BackendEphemeral Backend = "memory"
)

// Store is the persistence contract for the marketplace.
type Store interface {
	// Backend identifies the variant selected at startup.
	Backend() Backend
	Migrate(ctx context.Context) error
	Close() error

	// User operations.
	CreateUser(ctx context.Context, user *model.User) (Backend, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	// Listing operations.
	SaveListing(ctx context.Context, listing *model.Listing) (Backend, error)
	GetListings(ctx context.Context) ([]model.Listing, error)
	GetAvailableListings(ctx context.Context) ([]model.Listing, error)
	UpdateListingStatus(ctx context.Context, id string, status model.ListingStatus) (Backend, error)
	UpdateListingEmbedding(ctx context.Context, id string, embedding []float64) (Backend, error)

	// Buyer need operations. Needs are deactivated, never deleted.
	SaveBuyerNeed(ctx context.Context, need *model.BuyerNeed) (Backend, error)
	GetActiveBuyerNeeds(ctx context.Context) ([]model.BuyerNeed, error)
	GetBuyerNeeds(ctx context.Context) ([]model.BuyerNeed, error)
	DeactivateBuyerNeed(ctx context.Context, id string) (Backend, error)
	UpdateBuyerNeedEmbedding(ctx context.Context, id string, embedding []float64) (Backend, error)

	// Transaction records.
	SaveTransaction(ctx context.Context, txn *model.TransactionRecord) (Backend, error)
	GetTransactions(ctx context.Context) ([]model.TransactionRecord, error)

	// CategoryCounts returns available listings grouped by category, for
	// marketplace stats.
	CategoryCounts(ctx context.Context) (map[model.Category]int, error)
}
