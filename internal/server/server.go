// Package server exposes the marketplace, matching, and batch lifecycle
// operations over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/reclaimhub/wastex/internal/ai"
	"github.com/reclaimhub/wastex/internal/config"
	"github.com/reclaimhub/wastex/internal/lifecycle"
	"github.com/reclaimhub/wastex/internal/match"
	"github.com/reclaimhub/wastex/internal/storage"
)

// Server wires the HTTP API to the core services.
type Server struct {
	store      storage.Store
	matcher    *match.Engine
	classifier ai.Classifier
	embedder   ai.Embedder
	manager    *lifecycle.Manager
	reporter   *lifecycle.Reporter
	httpServer *http.Server
	cfg        config.ServerConfig
}

// Deps collects the services the server depends on.
type Deps struct {
	Store      storage.Store
	Matcher    *match.Engine
	Classifier ai.Classifier
	Embedder   ai.Embedder
	Manager    *lifecycle.Manager
	Reporter   *lifecycle.Reporter
}

// New creates an HTTP server over the given services.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		store:      deps.Store,
		matcher:    deps.Matcher,
		classifier: deps.Classifier,
		embedder:   deps.Embedder,
		manager:    deps.Manager,
		reporter:   deps.Reporter,
		cfg:        cfg,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Router builds the gin router with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		auth := api.Group("/auth")
		{
			auth.POST("/register", s.handleRegister)
			auth.POST("/login", s.handleLogin)
			auth.GET("/me", s.requireAuth(), s.handleMe)
		}

		api.POST("/waste/analyze", s.handleAnalyze)
		api.POST("/match", s.handleMatch)

		marketplace := api.Group("/marketplace")
		{
			marketplace.GET("/listings", s.handleGetListings)
			marketplace.POST("/listing", s.requireAuth(), s.handleCreateListing)
			marketplace.GET("/stats", s.handleStats)
			marketplace.POST("/transaction", s.requireAuth(), s.handleCreateTransaction)
		}

		buyers := api.Group("/buyers")
		{
			buyers.POST("/needs", s.requireAuth(), s.handleCreateNeed)
			buyers.DELETE("/needs/:need_id", s.requireAuth(), s.handleWithdrawNeed)
			buyers.GET("/recommendations/:buyer_id", s.handleRecommendations)
		}

		blockchain := api.Group("/blockchain")
		{
			blockchain.POST("/batch", s.requireAuth(), s.handleCreateBatch)
			blockchain.POST("/commit", s.requireAuth(), s.handleCommitBatch)
			blockchain.POST("/transfer", s.requireAuth(), s.handleTransferBatch)
			blockchain.GET("/batch/:batch_id", s.handleBatchStatus)
			blockchain.GET("/status", s.handleLedgerStatus)
		}

		api.GET("/db/status", s.handleDBStatus)
	}

	return router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		slog.Info("HTTP server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
