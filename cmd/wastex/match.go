package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reclaimhub/wastex/internal/config"
)

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <description>",
		Short: "Rank stored buyer needs against a waste description",
		Long: `Classify a waste description, embed it, and rank every active buyer
need by similarity. Only candidates above the match threshold are shown.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMatch,
	}
}

func runMatch(cmd *cobra.Command, args []string) error {
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

	classifier, embedder := initAI(cfg)
	engine := initMatcher(cfg, classifier, embedder)

	needs, err := store.GetActiveBuyerNeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load buyer needs: %w", err)
	}
	if len(needs) == 0 {
		slog.Info("No active buyer needs to match against")
		return nil
	}

	description := strings.Join(args, " ")
	candidates, err := engine.Rank(ctx, description, needs)
	if err != nil {
		return fmt.Errorf("matching failed: %w", err)
	}

	if len(candidates) == 0 {
		slog.Info("No matches above threshold", "needs_considered", len(needs))
		return nil
	}

	slog.Info("Matches found",
		"category", candidates[0].CategoryDetected,
		"count", len(candidates))
	for i, cand := range candidates {
		fmt.Printf("%2d. buyer=%s score=%.2f %s\n", i+1, cand.BuyerID, cand.MatchScore, cand.Reason)
	}

	return nil
}
