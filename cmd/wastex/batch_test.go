package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaimhub/wastex/internal/common"
	"github.com/reclaimhub/wastex/internal/ledger"
	"github.com/reclaimhub/wastex/internal/lifecycle"
)

func TestDescribeLedgerError(t *testing.T) {
	t.Run("unknown outcome points at status reconciliation", func(t *testing.T) {
		err := describeLedgerError(common.OutcomeUnknown(ledger.ErrLedgerTimeout))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch status")
		assert.ErrorIs(t, err, ledger.ErrLedgerTimeout)
	})

	t.Run("event extraction notes the confirmed transaction", func(t *testing.T) {
		err := describeLedgerError(lifecycle.ErrEventExtraction)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "confirmed")
	})

	t.Run("revert keeps its identity", func(t *testing.T) {
		err := describeLedgerError(ledger.ErrReverted)

		assert.ErrorIs(t, err, ledger.ErrReverted)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		base := errors.New("boom")

		assert.Equal(t, base, describeLedgerError(base))
	})
}

func TestSignerFlagValidation(t *testing.T) {
	cmd := batchCommitCmd()
	require.NoError(t, cmd.Flags().Set("address", "not-an-address"))
	require.NoError(t, cmd.Flags().Set("credential", "secret"))

	_, err := signerFromFlags(cmd)
	assert.ErrorIs(t, err, ledger.ErrInvalidIdentity)

	require.NoError(t, cmd.Flags().Set("address", "0xab5801a7d398351b8be11c439e05c5b3259aec9b"))
	signer, err := signerFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, "secret", signer.Credential)
}
