package largestfirst_selector

import (
	"fmt"
	"sort"

	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

// recipient + change
const numOfOutputs = 2

var (
	ErrZeroTargetAmount = fmt.Errorf("target amount must be greater than zero")
)

type selector struct {
	estimator wallet.FeeEstimator
}

func NewLargestFirstCoinSelector(estimator wallet.FeeEstimator) ports.CoinSelector {
	return &selector{estimator}
}

// SelectUtxos adds utxos from the largest to the smallest one until their
// total covers the target amount plus the fee of a tx spending them, with a
// recipient and a change output.
func (s *selector) SelectUtxos(
	utxos []domain.Utxo, targetAmount, satsPerByte uint64,
) (*domain.CoinSelection, error) {
	if targetAmount == 0 {
		return nil, ErrZeroTargetAmount
	}

	sortedUtxos := SortByValueDesc(utxos)

	selectedUtxos := make([]domain.Utxo, 0, len(sortedUtxos))
	var totalAmount, needed uint64
	for _, utxo := range sortedUtxos {
		selectedUtxos = append(selectedUtxos, utxo)

		var err error
		if totalAmount, err = wallet.SumAmounts(totalAmount, utxo.Value); err != nil {
			return nil, err
		}
		fee, err := s.estimator.Fee(len(selectedUtxos), numOfOutputs, satsPerByte)
		if err != nil {
			return nil, err
		}
		if needed, err = wallet.SumAmounts(targetAmount, fee); err != nil {
			return nil, err
		}
		if totalAmount >= needed {
			return &domain.CoinSelection{
				Utxos:  selectedUtxos,
				Fee:    fee,
				Change: totalAmount - needed,
			}, nil
		}
	}

	if len(selectedUtxos) == 0 {
		fee, err := s.estimator.Fee(1, numOfOutputs, satsPerByte)
		if err != nil {
			return nil, err
		}
		if needed, err = wallet.SumAmounts(targetAmount, fee); err != nil {
			return nil, err
		}
	}
	return nil, &domain.InsufficientFundsError{
		Needed:    needed,
		Available: totalAmount,
	}
}

// SortByValueDesc returns a copy of the given utxos sorted by value in
// descending order. Utxos with same value keep their original order.
func SortByValueDesc(utxos []domain.Utxo) []domain.Utxo {
	sorted := make([]domain.Utxo, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	return sorted
}
