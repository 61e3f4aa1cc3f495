package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reclaimhub/wastex/internal/common"
	"github.com/reclaimhub/wastex/internal/model"
)

// MemoryStore implements the Store interface in process memory. It is the
// ephemeral backend: selected explicitly at startup when no database is
// configured, never as a silent fallback after a failed write.
type MemoryStore struct {
	users    map[string]model.User
	listings map[string]model.Listing
	needs    map[string]model.BuyerNeed
	txns     map[string]model.TransactionRecord
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]model.User),
		listings: make(map[string]model.Listing),
		needs:    make(map[string]model.BuyerNeed),
		txns:     make(map[string]model.TransactionRecord),
	}
}

// Backend identifies this store as the ephemeral variant.
func (s *MemoryStore) Backend() Backend {
	return BackendEphemeral
}

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(_ context.Context) error {
	return nil
}

// Close releases nothing but satisfies the Store contract.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateUser inserts a new user.
func (s *MemoryStore) CreateUser(_ context.Context, user *model.User) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return BackendEphemeral, common.ErrDuplicateEntry
		}
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = *user
	return BackendEphemeral, nil
}

// GetUserByEmail fetches a user by email address.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

// GetUserByID fetches a user by ID.
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	u := user
	return &u, nil
}

// SaveListing inserts a listing.
func (s *MemoryStore) SaveListing(_ context.Context, listing *model.Listing) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now().UTC()
	}
	if listing.Status == "" {
		listing.Status = model.ListingAvailable
	}
	s.listings[listing.ID] = *listing
	return BackendEphemeral, nil
}

// GetListings returns all listings, newest first.
func (s *MemoryStore) GetListings(_ context.Context) ([]model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedListings(func(model.Listing) bool { return true }), nil
}

// GetAvailableListings returns listings still open for matching.
func (s *MemoryStore) GetAvailableListings(_ context.Context) ([]model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedListings(func(l model.Listing) bool { return l.Status == model.ListingAvailable }), nil
}

func (s *MemoryStore) sortedListings(keep func(model.Listing) bool) []model.Listing {
	var listings []model.Listing
	for _, listing := range s.listings {
		if keep(listing) {
			listings = append(listings, listing)
		}
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].ID > listings[j].ID
		}
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	return listings
}

// UpdateListingStatus moves a listing through the marketplace flow.
func (s *MemoryStore) UpdateListingStatus(_ context.Context, id string, status model.ListingStatus) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return BackendEphemeral, common.ErrNotFound
	}
	listing.Status = status
	s.listings[id] = listing
	return BackendEphemeral, nil
}

// UpdateListingEmbedding replaces a listing's embedding wholesale.
func (s *MemoryStore) UpdateListingEmbedding(_ context.Context, id string, embedding []float64) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return BackendEphemeral, common.ErrNotFound
	}
	listing.Embedding = append([]float64(nil), embedding...)
	s.listings[id] = listing
	return BackendEphemeral, nil
}

// SaveBuyerNeed inserts a buyer need.
func (s *MemoryStore) SaveBuyerNeed(_ context.Context, need *model.BuyerNeed) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if need.CreatedAt.IsZero() {
		need.CreatedAt = time.Now().UTC()
	}
	s.needs[need.ID] = *need
	return BackendEphemeral, nil
}

// GetActiveBuyerNeeds returns needs available for matching, oldest first.
func (s *MemoryStore) GetActiveBuyerNeeds(_ context.Context) ([]model.BuyerNeed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedNeeds(func(n model.BuyerNeed) bool { return n.Active }), nil
}

// GetBuyerNeeds returns every need, active or not.
func (s *MemoryStore) GetBuyerNeeds(_ context.Context) ([]model.BuyerNeed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedNeeds(func(model.BuyerNeed) bool { return true }), nil
}

func (s *MemoryStore) sortedNeeds(keep func(model.BuyerNeed) bool) []model.BuyerNeed {
	var needs []model.BuyerNeed
	for _, need := range s.needs {
		if keep(need) {
			needs = append(needs, need)
		}
	}
	sort.Slice(needs, func(i, j int) bool {
		if needs[i].CreatedAt.Equal(needs[j].CreatedAt) {
			return needs[i].ID < needs[j].ID
		}
		return needs[i].CreatedAt.Before(needs[j].CreatedAt)
	})
	return needs
}

// DeactivateBuyerNeed withdraws a need without deleting it.
func (s *MemoryStore) DeactivateBuyerNeed(_ context.Context, id string) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	need, ok := s.needs[id]
	if !ok {
		return BackendEphemeral, common.ErrNotFound
	}
	need.Active = false
	s.needs[id] = need
	return BackendEphemeral, nil
}

// UpdateBuyerNeedEmbedding replaces a need's embedding wholesale.
func (s *MemoryStore) UpdateBuyerNeedEmbedding(_ context.Context, id string, embedding []float64) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	need, ok := s.needs[id]
	if !ok {
		return BackendEphemeral, common.ErrNotFound
	}
	need.Embedding = append([]float64(nil), embedding...)
	s.needs[id] = need
	return BackendEphemeral, nil
}

// SaveTransaction records a marketplace transaction.
func (s *MemoryStore) SaveTransaction(_ context.Context, txn *model.TransactionRecord) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	s.txns[txn.ID] = *txn
	return BackendEphemeral, nil
}

// GetTransactions returns all transaction records, newest first.
func (s *MemoryStore) GetTransactions(_ context.Context) ([]model.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txns []model.TransactionRecord
	for _, txn := range s.txns {
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	return txns, nil
}

// CategoryCounts groups available listings by category.
func (s *MemoryStore) CategoryCounts(_ context.Context) (map[model.Category]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[model.Category]int)
	for _, listing := range s.listings {
		if listing.Status == model.ListingAvailable {
			counts[listing.Category]++
		}
	}
	return counts, nil
}
