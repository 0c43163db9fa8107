package wallet_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

func TestSumAmounts(t *testing.T) {
	t.Parallel()

	total, err := wallet.SumAmounts()
	require.NoError(t, err)
	require.Zero(t, total)

	total, err = wallet.SumAmounts(40000, 1130, 8870)
	require.NoError(t, err)
	require.Equal(t, uint64(50000), total)

	total, err = wallet.SumAmounts(math.MaxUint64-1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), total)

	_, err = wallet.SumAmounts(math.MaxUint64-100, 1130)
	require.ErrorIs(t, err, wallet.ErrAmountOverflow)

	_, err = wallet.SumAmounts(1, math.MaxUint64, 0)
	require.ErrorIs(t, err, wallet.ErrAmountOverflow)
}
