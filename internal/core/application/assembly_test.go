package application_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/dinghy/internal/core/application"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	largestfirst_selector "github.com/vulpemventures/dinghy/internal/infrastructure/coin-selector/largest-first"
	"github.com/vulpemventures/dinghy/pkg/wallet"
	"pgregory.net/rapid"
)

const sender = "mrcNu71ztWjAQA6ww9kHiW3zBWSQidHXTQ"

func TestAssembleTransaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		utxos           []uint64
		amount          uint64
		rate            uint64
		expectedFee     uint64
		expectedChange  uint64
		expectedNumOuts int
	}{
		{
			name:            "scenario_a",
			utxos:           []uint64{50000},
			amount:          40000,
			rate:            5,
			expectedFee:     1130,
			expectedChange:  8870,
			expectedNumOuts: 2,
		},
		{
			name:            "scenario_c_dust_absorbed",
			utxos:           []uint64{10000},
			amount:          9900,
			rate:            1,
			expectedFee:     100,
			expectedNumOuts: 1,
		},
		{
			name:            "change_equal_to_dust_threshold",
			utxos:           []uint64{40000 + 1130 + 546},
			amount:          40000,
			rate:            5,
			expectedFee:     1130 + 546,
			expectedNumOuts: 1,
		},
		{
			name:            "change_just_above_dust_threshold",
			utxos:           []uint64{40000 + 1130 + 547},
			amount:          40000,
			rate:            5,
			expectedFee:     1130,
			expectedChange:  547,
			expectedNumOuts: 2,
		},
		{
			name:            "exact_amount",
			utxos:           []uint64{20000, 20000},
			amount:          40000,
			rate:            5,
			expectedFee:     0,
			expectedNumOuts: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assembly, err := application.AssembleTransaction(assembleArgs(
				utxosWithValues(tt.utxos), tt.amount, tt.rate,
			))
			require.NoError(t, err)
			require.Equal(t, tt.expectedFee, assembly.Fee)
			require.Equal(t, tt.expectedChange, assembly.Change)
			require.Len(t, assembly.Outputs, tt.expectedNumOuts)
			require.Equal(t, recipient, assembly.Outputs[0].Address)
			require.Equal(t, tt.amount, assembly.Outputs[0].Value)
			require.NotEmpty(t, assembly.Outputs[0].Script)
			if assembly.HasChange() {
				require.Equal(t, sender, assembly.Outputs[1].Address)
				require.True(t, assembly.Outputs[1].IsChange)
			}
			requireBalanced(t, assembly)
		})
	}
}

func TestAssembleTransactionFailures(t *testing.T) {
	t.Parallel()

	_, err := application.AssembleTransaction(assembleArgs(nil, 1000, 5))
	require.ErrorIs(t, err, domain.ErrNoFundsAvailable)

	_, err = application.AssembleTransaction(assembleArgs(
		utxosWithValues([]uint64{1000}), 0, 5,
	))
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = application.AssembleTransaction(assembleArgs(
		utxosWithValues([]uint64{1000}), 5000, 5,
	))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	var fundsErr *domain.InsufficientFundsError
	require.True(t, errors.As(err, &fundsErr))
	require.Equal(t, uint64(5130), fundsErr.Shortfall())

	_, err = application.AssembleTransaction(assembleArgs(
		utxosWithValues([]uint64{5000}), math.MaxUint64-100, 5,
	))
	require.ErrorIs(t, err, wallet.ErrAmountOverflow)

	_, err = application.AssembleTransaction(assembleArgs(
		utxosWithValues([]uint64{math.MaxUint64, 1}), 1000, 5,
	))
	require.ErrorIs(t, err, wallet.ErrAmountOverflow)

	args := assembleArgs(utxosWithValues([]uint64{50000}), 1000, 5)
	args.Recipient = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
	_, err = application.AssembleTransaction(args)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAssembleSelectedUtxosIsBalanced(t *testing.T) {
	t.Parallel()

	estimator := wallet.NewFeeEstimator()
	selector := largestfirst_selector.NewLargestFirstCoinSelector(estimator)

	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Uint64Range(1, 10_000_000), 1, 30).Draw(t, "values")
		amount := rapid.Uint64Range(1, 50_000_000).Draw(t, "amount")
		rate := rapid.Uint64Range(1, 150).Draw(t, "rate")

		utxos := utxosWithValues(values)
		selection, err := selector.SelectUtxos(utxos, amount, rate)
		if err != nil {
			if !errors.Is(err, domain.ErrInsufficientFunds) {
				t.Fatalf("unexpected selection error: %s", err)
			}
			return
		}

		assembly, err := application.AssembleTransaction(
			assembleArgs(selection.Utxos, amount, rate),
		)
		if err != nil {
			t.Fatalf("unexpected assembly error: %s", err)
		}

		var inTotal, outTotal uint64
		for _, in := range assembly.Inputs {
			inTotal += in.Value
		}
		for _, out := range assembly.Outputs {
			outTotal += out.Value
		}
		if inTotal != outTotal+assembly.Fee {
			t.Fatalf("unbalanced tx: in %d, out %d, fee %d", inTotal, outTotal, assembly.Fee)
		}

		dust := estimator.DustThreshold(rate)
		if assembly.HasChange() {
			if assembly.Change <= dust || len(assembly.Outputs) != 2 {
				t.Fatalf("change %d must be above dust %d", assembly.Change, dust)
			}
			expectedFee, _ := estimator.Fee(len(assembly.Inputs), 2, rate)
			if assembly.Fee != expectedFee {
				t.Fatalf("expected fee %d, got %d", expectedFee, assembly.Fee)
			}
		} else {
			if len(assembly.Outputs) != 1 || assembly.Fee != inTotal-amount {
				t.Fatalf("dust change must be absorbed into fee %d", assembly.Fee)
			}
		}
	})
}

func assembleArgs(
	utxos []domain.Utxo, amount, rate uint64,
) application.AssembleArgs {
	return application.AssembleArgs{
		Utxos:       utxos,
		Sender:      sender,
		Recipient:   recipient,
		Amount:      amount,
		SatsPerByte: rate,
		Network:     network,
		Estimator:   wallet.NewFeeEstimator(),
	}
}

func utxosWithValues(values []uint64) []domain.Utxo {
	utxos := make([]domain.Utxo, 0, len(values))
	for i, v := range values {
		utxos = append(utxos, domain.Utxo{
			UtxoKey: domain.UtxoKey{TxID: utxoTxid, VOut: uint32(i)},
			Value:   v,
			Address: sender,
		})
	}
	return utxos
}

func requireBalanced(t *testing.T, assembly *application.Assembly) {
	t.Helper()

	var inTotal, outTotal uint64
	for _, in := range assembly.Inputs {
		inTotal += in.Value
	}
	for _, out := range assembly.Outputs {
		outTotal += out.Value
	}
	require.Equal(t, inTotal, outTotal+assembly.Fee)
}
