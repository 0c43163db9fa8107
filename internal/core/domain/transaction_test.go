package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/dinghy/internal/core/domain"
)

const (
	sender    = "mrcNu71ztWjAQA6ww9kHiW3zBWSQidHXTQ"
	recipient = "n31WD8pkfAjg2APV78GnbDTdZb1QonBi5D"
	txid      = "fa84eb6806daf1b3c495ed30554d80573a39335b2993b66b3cc1afaa53816e47"
)

func TestTransactionLifecycle(t *testing.T) {
	t.Parallel()

	tx := domain.NewTransaction(sender, recipient, 40000, 5)
	require.NotEmpty(t, tx.ID)
	require.Equal(t, domain.TxStatusValidating, tx.Status)
	require.False(t, tx.IsTerminal())

	require.NoError(t, tx.Fund())
	require.Equal(t, domain.TxStatusFunded, tx.Status)

	inputs, outputs := testInputsAndOutputs()
	require.NoError(t, tx.Assemble(inputs, outputs, 1130))
	require.Equal(t, domain.TxStatusAssembled, tx.Status)
	require.True(t, tx.IsBalanced())
	change, ok := tx.ChangeOutput()
	require.True(t, ok)
	require.Equal(t, uint64(8870), change.Value)

	require.NoError(t, tx.Sign(txid, "0200", [][]byte{{0x01}}))
	require.Equal(t, domain.TxStatusSigned, tx.Status)
	require.Equal(t, []byte{0x01}, tx.Inputs[0].UnlockingScript)

	require.NoError(t, tx.Broadcast(txid))
	require.Equal(t, domain.TxStatusBroadcast, tx.Status)
	require.Equal(t, txid, tx.BroadcastID)
	require.True(t, tx.IsTerminal())

	err := tx.Fail(domain.FailureBackendError, "late failure")
	require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	require.Equal(t, domain.TxStatusBroadcast, tx.Status)
}

func TestTransactionInvalidTransitions(t *testing.T) {
	t.Parallel()

	inputs, outputs := testInputsAndOutputs()

	t.Run("assemble_before_fund", func(t *testing.T) {
		t.Parallel()

		tx := domain.NewTransaction(sender, recipient, 40000, 5)
		err := tx.Assemble(inputs, outputs, 1130)
		require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	})

	t.Run("sign_before_assemble", func(t *testing.T) {
		t.Parallel()

		tx := domain.NewTransaction(sender, recipient, 40000, 5)
		require.NoError(t, tx.Fund())
		err := tx.Sign(txid, "00", [][]byte{{0x01}})
		require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	})

	t.Run("broadcast_before_sign", func(t *testing.T) {
		t.Parallel()

		tx := domain.NewTransaction(sender, recipient, 40000, 5)
		require.NoError(t, tx.Fund())
		require.NoError(t, tx.Assemble(inputs, outputs, 1130))
		err := tx.Broadcast(txid)
		require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	})

	t.Run("fund_twice", func(t *testing.T) {
		t.Parallel()

		tx := domain.NewTransaction(sender, recipient, 40000, 5)
		require.NoError(t, tx.Fund())
		require.ErrorIs(t, tx.Fund(), domain.ErrInvalidStatusTransition)
	})

	t.Run("fail_twice", func(t *testing.T) {
		t.Parallel()

		tx := domain.NewTransaction(sender, recipient, 40000, 5)
		require.NoError(t, tx.Fail(domain.FailureInvalidInput, "bad address"))
		require.Equal(t, domain.TxStatusFailed, tx.Status)
		require.Equal(t, domain.FailureInvalidInput, tx.FailureReason)
		require.Equal(t, "invalid-input", tx.FailureReason.String())

		err := tx.Fail(domain.FailureBackendError, "")
		require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
		require.Equal(t, domain.FailureInvalidInput, tx.FailureReason)
	})

	t.Run("unlocking_scripts_mismatch", func(t *testing.T) {
		t.Parallel()

		tx := domain.NewTransaction(sender, recipient, 40000, 5)
		require.NoError(t, tx.Fund())
		require.NoError(t, tx.Assemble(inputs, outputs, 1130))
		require.Error(t, tx.Sign(txid, "00", nil))
		require.Equal(t, domain.TxStatusAssembled, tx.Status)
	})
}

func TestAssembleUnbalancedTransaction(t *testing.T) {
	t.Parallel()

	inputs, outputs := testInputsAndOutputs()

	tests := []struct {
		name    string
		inputs  []domain.TxInput
		outputs []domain.TxOutput
		fee     uint64
	}{
		{"fee_too_low", inputs, outputs, 1129},
		{"fee_too_high", inputs, outputs, 1131},
		{"outputs_exceed_inputs", inputs, append(outputs, domain.TxOutput{Address: recipient, Value: 60000}), 0},
		{"no_inputs", nil, outputs, 0},
		{"no_outputs", inputs, nil, 50000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tx := domain.NewTransaction(sender, recipient, 40000, 5)
			require.NoError(t, tx.Fund())
			err := tx.Assemble(tt.inputs, tt.outputs, tt.fee)
			require.ErrorIs(t, err, domain.ErrUnbalancedTransaction)
			require.Equal(t, domain.TxStatusFunded, tx.Status)
		})
	}
}

func testInputsAndOutputs() ([]domain.TxInput, []domain.TxOutput) {
	return []domain.TxInput{
			{UtxoKey: domain.UtxoKey{TxID: txid, VOut: 0}, Value: 50000},
		}, []domain.TxOutput{
			{Address: recipient, Value: 40000},
			{Address: sender, Value: 8870, IsChange: true},
		}
}
