package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reclaimhub/wastex/internal/ai"
	"github.com/reclaimhub/wastex/internal/common"
	"github.com/reclaimhub/wastex/internal/ledger"
	"github.com/reclaimhub/wastex/internal/lifecycle"
	"github.com/reclaimhub/wastex/internal/model"
)

// internalError logs the underlying failure and returns a sanitized message.
func internalError(c *gin.Context, err error, msg string) {
	common.LogError(err, msg, common.Fields{"path": c.FullPath()})
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": string(s.store.Backend()),
	})
}

type analyzeRequest struct {
	Description string  `json:"description" binding:"required"`
	Location    string  `json:"location"`
	Hazard      string  `json:"hazard"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	desc := model.WasteDescription{
		Description: req.Description,
		Location:    req.Location,
		Hazard:      req.Hazard,
		Quantity:    req.Quantity,
	}

	category := model.CategoryUnknown
	if label, err := s.classifier.Classify(c.Request.Context(), desc.CombinedText()); err == nil {
		category = model.ParseCategory(label)
	}

	analysis := model.AnalyzeWaste(category, req.Quantity, req.Hazard)

	c.JSON(http.StatusOK, gin.H{
		"category": analysis.Category,
		"buyer":    analysis.BuyerType,
		"revenue":  analysis.Revenue,
		"savings":  analysis.Savings,
		"co2":      analysis.CO2OffsetTonnes,
		"landfill": analysis.LandfillDiverted,
	})
}

type matchRequest struct {
	Description string `json:"description" binding:"required"`
}

func (s *Server) handleMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyers, err := s.store.GetActiveBuyerNeeds(c.Request.Context())
	if err != nil {
		internalError(c, err, "failed to load buyer needs")
		return
	}

	candidates, err := s.matcher.Rank(c.Request.Context(), req.Description, buyers)
	if err != nil {
		if errors.Is(err, ai.ErrEmbedderUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "embedding service unavailable"})
			return
		}
		internalError(c, err, "matching failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": toMatchResponses(candidates)})
}

type matchResponse struct {
	BuyerID          string  `json:"buyer_id"`
	CategoryDetected string  `json:"category_detected"`
	Reason           string  `json:"reason"`
	MatchScore       float64 `json:"match_score"`
}

func toMatchResponses(candidates []model.MatchCandidate) []matchResponse {
	out := make([]matchResponse, len(candidates))
	for i, cand := range candidates {
		out[i] = matchResponse{
			BuyerID:          cand.BuyerID,
			MatchScore:       cand.MatchScore,
			CategoryDetected: string(cand.CategoryDetected),
			Reason:           cand.Reason,
		}
	}
	return out
}

func (s *Server) handleGetListings(c *gin.Context) {
	listings, err := s.store.GetListings(c.Request.Context())
	if err != nil {
		internalError(c, err, "failed to load listings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":   string(s.store.Backend()),
		"listings": listings,
	})
}

type createListingRequest struct {
	Description string  `json:"description" binding:"required"`
	Location    string  `json:"location"`
	Hazard      string  `json:"hazard"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

func (s *Server) handleCreateListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	desc := model.WasteDescription{
		Description: req.Description,
		Location:    req.Location,
		Hazard:      req.Hazard,
		Quantity:    req.Quantity,
	}

	category := model.CategoryUnknown
	if label, err := s.classifier.Classify(c.Request.Context(), desc.CombinedText()); err == nil {
		category = model.ParseCategory(label)
	}

	// Embedding failure does not block listing creation; the vector is
	// recomputed later via reembed.
	embedding, err := s.embedder.Embed(c.Request.Context(), req.Description)
	if err != nil {
		embedding = nil
	}

	listing := &model.Listing{
		ID:          uuid.NewString(),
		SellerID:    c.GetString(userIDKey),
		Description: req.Description,
		Location:    req.Location,
		Hazard:      req.Hazard,
		Category:    category,
		Quantity:    req.Quantity,
		Embedding:   embedding,
	}

	persistedBy, err := s.store.SaveListing(c.Request.Context(), listing)
	if err != nil {
		internalError(c, err, "failed to save listing")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"listing":      listing,
		"persisted_by": string(persistedBy),
		"price_per_kg": category.PricePerKg(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	counts, err := s.store.CategoryCounts(c.Request.Context())
	if err != nil {
		internalError(c, err, "failed to load stats")
		return
	}

	total := 0
	byCategory := make(map[string]int, len(counts))
	for category, count := range counts {
		byCategory[string(category)] = count
		total += count
	}

	c.JSON(http.StatusOK, gin.H{
		"total_available": total,
		"by_category":     byCategory,
		"source":          string(s.store.Backend()),
	})
}

type createTransactionRequest struct {
	ListingID  string  `json:"listing_id" binding:"required"`
	SellerID   string  `json:"seller_id" binding:"required"`
	Category   string  `json:"category"`
	TotalPrice float64 `json:"total_price"`
	BatchID    int64   `json:"batch_id"`
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txn := &model.TransactionRecord{
		ID:         uuid.NewString(),
		ListingID:  req.ListingID,
		BuyerID:    c.GetString(userIDKey),
		SellerID:   req.SellerID,
		Category:   model.ParseCategory(req.Category),
		TotalPrice: req.TotalPrice,
		BatchID:    req.BatchID,
	}

	persistedBy, err := s.store.SaveTransaction(c.Request.Context(), txn)
	if err != nil {
		internalError(c, err, "failed to save transaction")
		return
	}

	if _, err := s.store.UpdateListingStatus(c.Request.Context(), req.ListingID, model.ListingSold); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			internalError(c, err, "failed to update listing")
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction":  txn,
		"persisted_by": string(persistedBy),
	})
}

type createNeedRequest struct {
	LookingFor string `json:"looking_for" binding:"required"`
}

func (s *Server) handleCreateNeed(c *gin.Context) {
	var req createNeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	embedding, err := s.embedder.Embed(c.Request.Context(), req.LookingFor)
	if err != nil {
		// A need without an embedding can never match; reject outright.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "embedding service unavailable"})
		return
	}

	need := &model.BuyerNeed{
		ID:         uuid.NewString(),
		BuyerID:    c.GetString(userIDKey),
		LookingFor: req.LookingFor,
		Embedding:  embedding,
		Active:     true,
	}

	persistedBy, err := s.store.SaveBuyerNeed(c.Request.Context(), need)
	if err != nil {
		internalError(c, err, "failed to save buyer need")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"need":         need,
		"persisted_by": string(persistedBy),
	})
}

func (s *Server) handleWithdrawNeed(c *gin.Context) {
	if _, err := s.store.DeactivateBuyerNeed(c.Request.Context(), c.Param("need_id")); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "need not found"})
			return
		}
		internalError(c, err, "failed to withdraw need")
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawn": true})
}

func (s *Server) handleRecommendations(c *gin.Context) {
	buyerID := c.Param("buyer_id")

	needs, err := s.store.GetActiveBuyerNeeds(c.Request.Context())
	if err != nil {
		internalError(c, err, "failed to load buyer needs")
		return
	}

	var buyerNeeds []model.BuyerNeed
	for _, need := range needs {
		if need.BuyerID == buyerID {
			buyerNeeds = append(buyerNeeds, need)
		}
	}

	if len(buyerNeeds) == 0 {
		c.JSON(http.StatusOK, gin.H{"recommendations": []gin.H{}})
		return
	}

	listings, err := s.store.GetAvailableListings(c.Request.Context())
	if err != nil {
		internalError(c, err, "failed to load listings")
		return
	}

	// Recommendations invert the usual direction: each listing is ranked
	// against this buyer's needs.
	var recommendations []gin.H
	for _, listing := range listings {
		if len(listing.Embedding) == 0 {
			continue
		}

		candidates, err := s.matcher.Rank(c.Request.Context(), listing.Description, buyerNeeds)
		if err != nil || len(candidates) == 0 {
			continue
		}

		recommendations = append(recommendations, gin.H{
			"listing_id":  listing.ID,
			"description": listing.Description,
			"category":    listing.Category,
			"quantity":    listing.Quantity,
			"match_score": candidates[0].MatchScore,
			"reason":      candidates[0].Reason,
		})
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recommendations})
}

type createBatchRequest struct {
	Category      string `json:"category" binding:"required"`
	Quantity      int64  `json:"quantity" binding:"required,gt=0"`
	SellerAddress string `json:"seller_address" binding:"required"`
}

func (s *Server) handleCreateBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batchID, err := s.manager.Create(c.Request.Context(), model.ParseCategory(req.Category), req.Quantity, req.SellerAddress)
	if err != nil {
		s.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"batch_id": batchID})
}

type batchActionRequest struct {
	BatchID    int64  `json:"batch_id" binding:"required"`
	Address    string `json:"address" binding:"required"`
	Credential string `json:"credential" binding:"required"`
}

func (s *Server) handleCommitBatch(c *gin.Context) {
	var req batchActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.manager.Commit(c.Request.Context(), req.BatchID, ledger.Signer{
		Address:    req.Address,
		Credential: req.Credential,
	})
	if err != nil {
		s.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch_id": req.BatchID, "committed": true})
}

func (s *Server) handleTransferBatch(c *gin.Context) {
	var req batchActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.manager.Transfer(c.Request.Context(), req.BatchID, ledger.Signer{
		Address:    req.Address,
		Credential: req.Credential,
	})
	if err != nil {
		s.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch_id": req.BatchID, "transferred": true})
}

func (s *Server) handleBatchStatus(c *gin.Context) {
	batchID, err := strconv.ParseInt(c.Param("batch_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return
	}

	batch, err := s.manager.Status(c.Request.Context(), batchID)
	if err != nil {
		s.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batch_id":        batch.BatchID,
		"category":        batch.Category,
		"quantity":        batch.Quantity,
		"current_owner":   batch.CurrentOwner,
		"committed_buyer": batch.CommittedBuyer,
		"status":          batch.Status,
		"created_at":      batch.CreatedAt,
	})
}

func (s *Server) handleLedgerStatus(c *gin.Context) {
	health := s.reporter.Health(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"configured": health.Configured,
		"connected":  health.Connected,
		"endpoint":   health.Endpoint,
		"contract":   health.Contract,
		"network_id": health.NetworkID,
	})
}

func (s *Server) handleDBStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"backend": string(s.store.Backend()),
		"durable": s.store.Backend() == "sqlite",
	})
}

// writeLedgerError maps ledger error kinds to HTTP responses. Every kind
// keeps its identity; the unknown-outcome marker is surfaced explicitly so
// clients know to reconcile before retrying.
func (s *Server) writeLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidIdentity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity", "detail": err.Error()})
	case errors.Is(err, ledger.ErrReverted):
		c.JSON(http.StatusConflict, gin.H{"error": "ledger rejected the transition", "detail": err.Error()})
	case errors.Is(err, lifecycle.ErrEventExtraction):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "event extraction failed",
			"detail": err.Error(),
			"note":   "the transaction confirmed; the batch may exist despite the missing id",
		})
	case errors.Is(err, ledger.ErrLedgerTimeout), common.IsOutcomeUnknown(err):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":           "ledger call did not confirm",
			"detail":          err.Error(),
			"outcome_unknown": true,
		})
	case errors.Is(err, ledger.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger unavailable", "detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
