package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/reclaimhub/wastex/internal/config"
	"github.com/reclaimhub/wastex/internal/lifecycle"
	"github.com/reclaimhub/wastex/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the marketplace API: auth, listings, buyer needs, matching,
and the batch lifecycle endpoints backed by the ledger gateway.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx := cmd.Context()

	store, err := initStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	classifier, embedder := initAI(cfg)
	client, manager := initLedger(cfg)

	if !client.Configured() {
		slog.Warn("Ledger gateway not configured, batch endpoints will report unavailable")
	}

	srv := server.New(cfg.Server, server.Deps{
		Store:      store,
		Matcher:    initMatcher(cfg, classifier, embedder),
		Classifier: classifier,
		Embedder:   embedder,
		Manager:    manager,
		Reporter:   lifecycle.NewReporter(client),
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}
