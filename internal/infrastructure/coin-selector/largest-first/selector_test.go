package largestfirst_selector_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	largestfirst_selector "github.com/vulpemventures/dinghy/internal/infrastructure/coin-selector/largest-first"
	"github.com/vulpemventures/dinghy/pkg/wallet"
	"pgregory.net/rapid"
)

func TestSelectUtxos(t *testing.T) {
	t.Parallel()

	selector := largestfirst_selector.NewLargestFirstCoinSelector(
		wallet.NewFeeEstimator(),
	)

	t.Run("target_plus_fee_overflow", func(t *testing.T) {
		t.Parallel()

		selection, err := selector.SelectUtxos(newUtxos(5000), math.MaxUint64-100, 5)
		require.ErrorIs(t, err, wallet.ErrAmountOverflow)
		require.Nil(t, selection)
	})

	t.Run("single_largest_utxo", func(t *testing.T) {
		t.Parallel()

		utxos := newUtxos(30000, 50000)
		selection, err := selector.SelectUtxos(utxos, 40000, 5)
		require.NoError(t, err)
		require.Len(t, selection.Utxos, 1)
		require.Equal(t, uint64(50000), selection.Utxos[0].Value)
		require.Equal(t, uint64(1130), selection.Fee)
		require.Equal(t, uint64(8870), selection.Change)
		// input not reordered
		require.Equal(t, uint64(30000), utxos[0].Value)
	})

	t.Run("multiple_utxos", func(t *testing.T) {
		t.Parallel()

		utxos := newUtxos(20000, 10000, 30000)
		selection, err := selector.SelectUtxos(utxos, 45000, 5)
		require.NoError(t, err)
		require.Len(t, selection.Utxos, 2)
		require.Equal(t, uint64(30000), selection.Utxos[0].Value)
		require.Equal(t, uint64(20000), selection.Utxos[1].Value)
		require.Equal(t, uint64(1870), selection.Fee)
		require.Equal(t, uint64(3130), selection.Change)
	})

	t.Run("fee_requires_extra_utxo", func(t *testing.T) {
		t.Parallel()

		utxos := newUtxos(40000, 1000)
		selection, err := selector.SelectUtxos(utxos, 39000, 5)
		require.NoError(t, err)
		require.Len(t, selection.Utxos, 2)
		require.Equal(t, uint64(130), selection.Change)
	})

	t.Run("stable_on_ties", func(t *testing.T) {
		t.Parallel()

		utxos := newUtxos(5000, 5000, 5000)
		selection, err := selector.SelectUtxos(utxos, 8000, 1)
		require.NoError(t, err)
		require.Len(t, selection.Utxos, 2)
		require.Equal(t, utxos[0].Key(), selection.Utxos[0].Key())
		require.Equal(t, utxos[1].Key(), selection.Utxos[1].Key())
	})

	t.Run("insufficient_funds", func(t *testing.T) {
		t.Parallel()

		_, err := selector.SelectUtxos(newUtxos(1000), 5000, 5)
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		fundsErr, ok := err.(*domain.InsufficientFundsError)
		require.True(t, ok)
		require.Equal(t, uint64(5130), fundsErr.Shortfall())
	})

	t.Run("empty_utxos", func(t *testing.T) {
		t.Parallel()

		_, err := selector.SelectUtxos(nil, 5000, 5)
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})

	t.Run("zero_target", func(t *testing.T) {
		t.Parallel()

		_, err := selector.SelectUtxos(newUtxos(1000), 0, 5)
		require.ErrorIs(t, err, largestfirst_selector.ErrZeroTargetAmount)
	})
}

func TestSelectUtxosProperties(t *testing.T) {
	estimator := wallet.NewFeeEstimator()
	selector := largestfirst_selector.NewLargestFirstCoinSelector(estimator)

	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Uint64Range(1, 10_000_000), 0, 50).Draw(t, "values")
		target := rapid.Uint64Range(1, 100_000_000).Draw(t, "target")
		rate := rapid.Uint64Range(0, 200).Draw(t, "rate")

		utxos := newUtxos(values...)
		var available uint64
		for _, v := range values {
			available += v
		}

		selection, err := selector.SelectUtxos(utxos, target, rate)
		if available < target {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			return
		}
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			fundsErr := err.(*domain.InsufficientFundsError)
			require.Equal(t, available, fundsErr.Available)
			require.Greater(t, fundsErr.Shortfall(), uint64(0))
			return
		}

		fee, err := estimator.Fee(len(selection.Utxos), 2, rate)
		require.NoError(t, err)
		require.Equal(t, fee, selection.Fee)
		require.GreaterOrEqual(t, selection.Total(), target+fee)
		require.Equal(t, selection.Total()-target-fee, selection.Change)
		require.LessOrEqual(t, len(selection.Utxos), len(utxos))
	})
}

func newUtxos(values ...uint64) []domain.Utxo {
	utxos := make([]domain.Utxo, 0, len(values))
	for i, v := range values {
		utxos = append(utxos, domain.Utxo{
			UtxoKey: domain.UtxoKey{
				TxID: fmt.Sprintf("%064x", i),
				VOut: uint32(i),
			},
			Value:         v,
			Confirmations: 1,
		})
	}
	return utxos
}
