package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/reclaimhub/wastex/internal/config"
)

func reembedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reembed",
		Short: "Recompute embeddings for stored listings and buyer needs",
		Long: `Re-run the embedding service over every stored listing and buyer need
and persist the new vectors.

Run this after switching embedding models: vectors from different
models are not comparable, and stale vectors silently degrade match
quality.`,
		RunE: runReembed,
	}

	cmd.Flags().Bool("needs-only", false, "only recompute buyer need embeddings")
	cmd.Flags().Bool("listings-only", false, "only recompute listing embeddings")

	return cmd
}

func runReembed(cmd *cobra.Command, _ []string) error {
	needsOnly, _ := cmd.Flags().GetBool("needs-only")
	listingsOnly, _ := cmd.Flags().GetBool("listings-only")
	if needsOnly && listingsOnly {
		return fmt.Errorf("--needs-only and --listings-only are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	store, err := initStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	_, embedder := initAI(cfg)

	var failed int

	if !needsOnly {
		listings, err := store.GetListings(ctx)
		if err != nil {
			return fmt.Errorf("failed to load listings: %w", err)
		}

		bar := newReembedBar(len(listings), "Re-embedding listings...")
		for _, listing := range listings {
			embedding, err := embedder.Embed(ctx, listing.Description)
			if err != nil {
				failed++
				slog.Warn("Failed to embed listing", "listing_id", listing.ID, "error", err)
			} else if _, err := store.UpdateListingEmbedding(ctx, listing.ID, embedding); err != nil {
				failed++
				slog.Warn("Failed to save listing embedding", "listing_id", listing.ID, "error", err)
			}
			_ = bar.Add(1)
		}
	}

	if !listingsOnly {
		needs, err := store.GetBuyerNeeds(ctx)
		if err != nil {
			return fmt.Errorf("failed to load buyer needs: %w", err)
		}

		bar := newReembedBar(len(needs), "Re-embedding buyer needs...")
		for _, need := range needs {
			embedding, err := embedder.Embed(ctx, need.LookingFor)
			if err != nil {
				failed++
				slog.Warn("Failed to embed need", "need_id", need.ID, "error", err)
			} else if _, err := store.UpdateBuyerNeedEmbedding(ctx, need.ID, embedding); err != nil {
				failed++
				slog.Warn("Failed to save need embedding", "need_id", need.ID, "error", err)
			}
			_ = bar.Add(1)
		}
	}

	if failed > 0 {
		return fmt.Errorf("re-embedding finished with %d failures", failed)
	}

	slog.Info("Re-embedding complete")
	return nil
}

func newReembedBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
