package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reclaimhub/wastex/internal/config"
)

func listingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Show stored waste listings",
		RunE:  runListings,
	}

	cmd.Flags().Bool("available", false, "only show listings still available")

	return cmd
}

func runListings(cmd *cobra.Command, _ []string) error {
	availableOnly, _ := cmd.Flags().GetBool("available")

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

	listings, err := store.GetListings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}
	if availableOnly {
		listings, err = store.GetAvailableListings(ctx)
		if err != nil {
			return fmt.Errorf("failed to load listings: %w", err)
		}
	}

	if len(listings) == 0 {
		fmt.Println("No listings.")
		return nil
	}

	for _, listing := range listings {
		fmt.Printf("%s  %-12s %-9s %8.1f kg  %s\n",
			listing.CreatedAt.Format("2006-01-02"),
			listing.Category,
			listing.Status,
			listing.Quantity,
			listing.Description)
	}

	return nil
}
