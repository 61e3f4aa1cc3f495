package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reclaimhub/wastex/internal/common"
	"github.com/reclaimhub/wastex/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite-backed store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("%w: dbPath cannot be empty", common.ErrInvalidConfig)
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Backend identifies this store as the durable variant.
func (s *SQLiteStore) Backend() Backend {
	return BackendDurable
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *model.User) (Backend, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, company_name, wallet_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.CompanyName, user.WalletAddress, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return BackendDurable, fmt.Errorf("%w: email %s", common.ErrDuplicateEntry, user.Email)
		}
		return BackendDurable, fmt.Errorf("failed to create user: %w", err)
	}

	return BackendDurable, nil
}

// GetUserByEmail fetches a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, company_name, wallet_address, created_at
		 FROM users WHERE email = ?`, email))
}

// GetUserByID fetches a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, company_name, wallet_address, created_at
		 FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*model.User, error) {
	var user model.User
	var companyName, walletAddress sql.NullString

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &companyName, &walletAddress, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.CompanyName = companyName.String
	user.WalletAddress = walletAddress.String
	return &user, nil
}

// SaveListing inserts a listing.
func (s *SQLiteStore) SaveListing(ctx context.Context, listing *model.Listing) (Backend, error) {
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now().UTC()
	}
	if listing.Status == "" {
		listing.Status = model.ListingAvailable
	}

	embedding, err := marshalEmbedding(listing.Embedding)
	if err != nil {
		return BackendDurable, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listings (id, seller_id, description, location, hazard, category, quantity, status, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID, listing.SellerID, listing.Description, listing.Location, listing.Hazard,
		string(listing.Category), listing.Quantity, string(listing.Status), embedding, listing.CreatedAt)
	if err != nil {
		return BackendDurable, fmt.Errorf("failed to save listing: %w", err)
	}

	return BackendDurable, nil
}

// GetListings returns all listings, newest first.
func (s *SQLiteStore) GetListings(ctx context.Context) ([]model.Listing, error) {
	return s.queryListings(ctx,
		`SELECT id, seller_id, description, location, hazard, category, quantity, status, embedding, created_at
		 FROM listings ORDER BY created_at DESC`)
}

// GetAvailableListings returns listings still open for matching.
func (s *SQLiteStore) GetAvailableListings(ctx context.Context) ([]model.Listing, error) {
	return s.queryListings(ctx,
		`SELECT id, seller_id, description, location, hazard, category, quantity, status, embedding, created_at
		 FROM listings WHERE status = 'AVAILABLE' ORDER BY created_at DESC`)
}

func (s *SQLiteStore) queryListings(ctx context.Context, query string, args ...any) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []model.Listing
	for rows.Next() {
		var listing model.Listing
		var location, hazard, category, status sql.NullString
		var embedding sql.NullString

		if err := rows.Scan(&listing.ID, &listing.SellerID, &listing.Description, &location, &hazard,
			&category, &listing.Quantity, &status, &embedding, &listing.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}

		listing.Location = location.String
		listing.Hazard = hazard.String
		listing.Category = model.Category(category.String)
		listing.Status = model.ListingStatus(status.String)
		listing.Embedding, err = unmarshalEmbedding(embedding)
		if err != nil {
			return nil, err
		}

		listings = append(listings, listing)
	}

	return listings, rows.Err()
}

// UpdateListingStatus moves a listing through the marketplace flow.
func (s *SQLiteStore) UpdateListingStatus(ctx context.Context, id string, status model.ListingStatus) (Backend, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE listings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return BackendDurable, fmt.Errorf("failed to update listing status: %w", err)
	}
	return BackendDurable, requireRowAffected(result, "listing", id)
}

// UpdateListingEmbedding replaces a listing's embedding wholesale.
func (s *SQLiteStore) UpdateListingEmbedding(ctx context.Context, id string, embedding []float64) (Backend, error) {
	encoded, err := marshalEmbedding(embedding)
	if err != nil {
		return BackendDurable, err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE listings SET embedding = ? WHERE id = ?`, encoded, id)
	if err != nil {
		return BackendDurable, fmt.Errorf("failed to update listing embedding: %w", err)
	}
	return BackendDurable, requireRowAffected(result, "listing", id)
}

// SaveBuyerNeed inserts a buyer need.
func (s *SQLiteStore) SaveBuyerNeed(ctx context.Context, need *model.BuyerNeed) (Backend, error) {
	if need.CreatedAt.IsZero() {
		need.CreatedAt = time.Now().UTC()
	}

	embedding, err := marshalEmbedding(need.Embedding)
	if err != nil {
		return BackendDurable, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO buyer_needs (id, buyer_id, looking_for, embedding, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		need.ID, need.BuyerID, need.LookingFor, embedding, boolToInt(need.Active), need.CreatedAt)
	if err != nil {
		return BackendDurable, fmt.Errorf("failed to save buyer need: %w", err)
	}

	return BackendDurable, nil
}

// GetActiveBuyerNeeds returns needs available for matching, oldest first so
// ranking ties break consistently.
func (s *SQLiteStore) GetActiveBuyerNeeds(ctx context.Context) ([]model.BuyerNeed, error) {
	return s.queryBuyerNeeds(ctx,
		`SELECT id, buyer_id, looking_for, embedding, active, created_at
		 FROM buyer_needs WHERE active = 1 ORDER BY created_at ASC`)
}

// GetBuyerNeeds returns every need, active or not.
func (s *SQLiteStore) GetBuyerNeeds(ctx context.Context) ([]model.BuyerNeed, error) {
	return s.queryBuyerNeeds(ctx,
		`SELECT id, buyer_id, looking_for, embedding, active, created_at
		 FROM buyer_needs ORDER BY created_at ASC`)
}

func (s *SQLiteStore) queryBuyerNeeds(ctx context.Context, query string, args ...any) ([]model.BuyerNeed, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query buyer needs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var needs []model.BuyerNeed
	for rows.Next() {
		var need model.BuyerNeed
		var embedding sql.NullString
		var active int

		if err := rows.Scan(&need.ID, &need.BuyerID, &need.LookingFor, &embedding, &active, &need.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan buyer need: %w", err)
		}

		need.Active = active != 0
		need.Embedding, err = unmarshalEmbedding(embedding)
		if err != nil {
			return nil, err
		}

		needs = append(needs, need)
	}

	return needs, rows.Err()
}

// DeactivateBuyerNeed withdraws a need without deleting it.
func (s *SQLiteStore) DeactivateBuyerNeed(ctx context.Context, id string) (Backend, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE buyer_needs SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return BackendDurable, fmt.Errorf("failed to deactivate buyer need: %w", err)
	}
	return BackendDurable, requireRowAffected(result, "buyer need", id)
}

// UpdateBuyerNeedEmbedding replaces a need's embedding wholesale.
func (s *SQLiteStore) UpdateBuyerNeedEmbedding(ctx context.Context, id string, embedding []float64) (Backend, error) {
	encoded, err := marshalEmbedding(embedding)
	if err != nil {
		return BackendDurable, err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE buyer_needs SET embedding = ? WHERE id = ?`, encoded, id)
	if err != nil {
		return BackendDurable, fmt.Errorf("failed to update buyer need embedding: %w", err)
	}
	return BackendDurable, requireRowAffected(result, "buyer need", id)
}

// SaveTransaction records a marketplace transaction.
func (s *SQLiteStore) SaveTransaction(ctx context.Context, txn *model.TransactionRecord) (Backend, error) {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, listing_id, buyer_id, seller_id, category, total_price, batch_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.ListingID, txn.BuyerID, txn.SellerID, string(txn.Category), txn.TotalPrice, txn.BatchID, txn.CreatedAt)
	if err != nil {
		return BackendDurable, fmt.Errorf("failed to save transaction: %w", err)
	}

	return BackendDurable, nil
}

// GetTransactions returns all transaction records, newest first.
func (s *SQLiteStore) GetTransactions(ctx context.Context) ([]model.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, buyer_id, seller_id, category, total_price, batch_id, created_at
		 FROM transactions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.TransactionRecord
	for rows.Next() {
		var txn model.TransactionRecord
		var category sql.NullString
		var totalPrice sql.NullFloat64

		if err := rows.Scan(&txn.ID, &txn.ListingID, &txn.BuyerID, &txn.SellerID,
			&category, &totalPrice, &txn.BatchID, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		txn.Category = model.Category(category.String)
		txn.TotalPrice = totalPrice.Float64
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

// CategoryCounts groups available listings by category.
func (s *SQLiteStore) CategoryCounts(ctx context.Context) (map[model.Category]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM listings WHERE status = 'AVAILABLE' GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.Category]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[model.Category(category)] = count
	}

	return counts, rows.Err()
}

func marshalEmbedding(embedding []float64) (sql.NullString, error) {
	if len(embedding) == 0 {
		return sql.NullString{}, nil
	}
	encoded, err := json.Marshal(embedding)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return sql.NullString{String: string(encoded), Valid: true}, nil
}

func unmarshalEmbedding(encoded sql.NullString) ([]float64, error) {
	if !encoded.Valid || encoded.String == "" {
		return nil, nil
	}
	var embedding []float64
	if err := json.Unmarshal([]byte(encoded.String), &embedding); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return embedding, nil
}

func requireRowAffected(result sql.Result, kind, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %s", common.ErrNotFound, kind, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
