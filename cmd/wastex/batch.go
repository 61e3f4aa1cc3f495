package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reclaimhub/wastex/internal/common"
	"github.com/reclaimhub/wastex/internal/config"
	"github.com/reclaimhub/wastex/internal/ledger"
	"github.com/reclaimhub/wastex/internal/lifecycle"
	"github.com/reclaimhub/wastex/internal/model"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Manage waste batches on the ledger",
		Long: `Create, commit to, transfer, and inspect waste batches. Every state
transition is submitted to the ledger as-is; the ledger alone decides
whether a transition is valid.`,
	}

	cmd.AddCommand(batchCreateCmd())
	cmd.AddCommand(batchCommitCmd())
	cmd.AddCommand(batchTransferCmd())
	cmd.AddCommand(batchStatusCmd())

	return cmd
}

func batchCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <category> <quantity-kg> <seller-address>",
		Short: "Create a new batch owned by the seller",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || quantity <= 0 {
				return fmt.Errorf("invalid quantity %q", args[1])
			}

			manager, err := initBatchManager()
			if err != nil {
				return err
			}

			batchID, err := manager.Create(cmd.Context(), model.ParseCategory(args[0]), quantity, args[2])
			if err != nil {
				return describeLedgerError(err)
			}

			slog.Info("Batch created", "batch_id", batchID)
			return nil
		},
	}
	return cmd
}

func batchCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit <batch-id>",
		Short: "Commit to purchase a batch as the buyer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid batch id %q", args[0])
			}

			signer, err := signerFromFlags(cmd)
			if err != nil {
				return err
			}

			manager, err := initBatchManager()
			if err != nil {
				return err
			}

			if err := manager.Commit(cmd.Context(), batchID, signer); err != nil {
				return describeLedgerError(err)
			}

			slog.Info("Committed to batch", "batch_id", batchID, "buyer", signer.Address)
			return nil
		},
	}
	addSignerFlags(cmd)
	return cmd
}

func batchTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <batch-id>",
		Short: "Transfer batch ownership to the committed buyer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid batch id %q", args[0])
			}

			signer, err := signerFromFlags(cmd)
			if err != nil {
				return err
			}

			manager, err := initBatchManager()
			if err != nil {
				return err
			}

			if err := manager.Transfer(cmd.Context(), batchID, signer); err != nil {
				return describeLedgerError(err)
			}

			slog.Info("Batch transferred", "batch_id", batchID)
			return nil
		},
	}
	addSignerFlags(cmd)
	return cmd
}

func batchStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <batch-id>",
		Short: "Read batch state from the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid batch id %q", args[0])
			}

			manager, err := initBatchManager()
			if err != nil {
				return err
			}

			batch, err := manager.Status(cmd.Context(), batchID)
			if err != nil {
				return describeLedgerError(err)
			}

			fmt.Printf("Batch %d\n", batch.BatchID)
			fmt.Printf("  Status:    %s\n", batch.Status)
			fmt.Printf("  Category:  %s\n", batch.Category)
			fmt.Printf("  Quantity:  %d kg\n", batch.Quantity)
			fmt.Printf("  Owner:     %s\n", batch.CurrentOwner)
			if batch.CommittedBuyer != "" {
				fmt.Printf("  Buyer:     %s\n", batch.CommittedBuyer)
			}
			fmt.Printf("  Created:   %s\n", batch.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().String("address", "", "signing party's ledger address")
	cmd.Flags().String("credential", "", "signing party's gateway credential")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("credential")
}

func signerFromFlags(cmd *cobra.Command) (ledger.Signer, error) {
	address, _ := cmd.Flags().GetString("address")
	credential, _ := cmd.Flags().GetString("credential")

	if err := ledger.CheckIdentity(address); err != nil {
		return ledger.Signer{}, err
	}

	return ledger.Signer{Address: address, Credential: credential}, nil
}

func initBatchManager() (*lifecycle.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client, manager := initLedger(cfg)
	if !client.Configured() {
		return nil, fmt.Errorf("%w: ledger.endpoint and ledger.contract must be set", common.ErrMissingConfig)
	}

	return manager, nil
}

// describeLedgerError rewords ledger failures for the terminal. The
// unknown-outcome case matters most: the user must reconcile with a status
// read, not blindly retry.
func describeLedgerError(err error) error {
	switch {
	case common.IsOutcomeUnknown(err):
		return fmt.Errorf("outcome unknown, run 'wastex batch status' to reconcile before retrying: %w", err)
	case errors.Is(err, lifecycle.ErrEventExtraction):
		return fmt.Errorf("the transaction confirmed but the batch id could not be recovered: %w", err)
	case errors.Is(err, ledger.ErrReverted):
		return fmt.Errorf("the ledger rejected the transition: %w", err)
	default:
		return err
	}
}
