package model

import "time"

// ListingStatus indicates where a listing is in the marketplace flow.
type ListingStatus string

// Listing status constants.
const (
	ListingAvailable ListingStatus = "AVAILABLE"
	ListingMatched   ListingStatus = "MATCHED"
	ListingSold      ListingStatus = "SOLD"
)

// WasteDescription is the seller's free-text input plus structured fields.
// It is immutable once submitted for matching.
type WasteDescription struct {
	Description string
	Location    string
	Hazard      string
	Quantity    float64
}

// CombinedText flattens the description into the single span handed to the
// classifier and embedder.
func (d WasteDescription) CombinedText() string {
	return d.Description + " at " + d.Location
}

// Listing is a persisted seller listing.
type Listing struct {
	CreatedAt   time.Time     `json:"created_at"`
	ID          string        `json:"id"`
	SellerID    string        `json:"seller_id"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	Hazard      string        `json:"hazard"`
	Category    Category      `json:"category"`
	Status      ListingStatus `json:"status"`
	Embedding   []float64     `json:"-"`
	Quantity    float64       `json:"quantity"`
}

// BuyerNeed is a buyer's standing description of material they can reuse.
// Needs are deactivated when withdrawn, never deleted.
type BuyerNeed struct {
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	BuyerID    string    `json:"buyer_id"`
	LookingFor string    `json:"looking_for"`
	Embedding  []float64 `json:"-"`
	Active     bool      `json:"active"`
}

// TransactionRecord is a local record of a marketplace transaction between a
// listing and a buyer. It mirrors, and never overrides, the ledger state.
type TransactionRecord struct {
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	Category   Category  `json:"category"`
	TotalPrice float64   `json:"total_price"`
	BatchID    int64     `json:"batch_id"`
}
