package smallestsubset_selector

import (
	"fmt"
	"math"

	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	largestfirst_selector "github.com/vulpemventures/dinghy/internal/infrastructure/coin-selector/largest-first"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

const (
	// recipient + change
	numOfOutputs = 2
	// combinations are searched among the largest utxos only.
	maxCandidateUtxos = 16
)

var (
	ErrZeroTargetAmount = fmt.Errorf("target amount must be greater than zero")
)

type selector struct {
	estimator wallet.FeeEstimator
	fallback  ports.CoinSelector
}

func NewSmallestSubsetCoinSelector(estimator wallet.FeeEstimator) ports.CoinSelector {
	return &selector{
		estimator: estimator,
		fallback:  largestfirst_selector.NewLargestFirstCoinSelector(estimator),
	}
}

func (s *selector) SelectUtxos(
	utxos []domain.Utxo, targetAmount, satsPerByte uint64,
) (*domain.CoinSelection, error) {
	if targetAmount == 0 {
		return nil, ErrZeroTargetAmount
	}

	sortedUtxos := largestfirst_selector.SortByValueDesc(utxos)
	candidates := sortedUtxos
	if len(candidates) > maxCandidateUtxos {
		candidates = candidates[:maxCandidateUtxos]
	}

	fees := make([]uint64, len(candidates)+1)
	for i := 1; i <= len(candidates); i++ {
		fee, err := s.estimator.Fee(i, numOfOutputs, satsPerByte)
		if err != nil {
			return nil, err
		}
		fees[i] = fee
	}

	values := make([]uint64, 0, len(candidates))
	for _, u := range candidates {
		values = append(values, u.Value)
	}

	// Amounts overflowing 64 bits are reported by the fallback selector.
	if _, err := wallet.SumAmounts(targetAmount, fees[len(candidates)]); err != nil {
		return s.fallback.SelectUtxos(utxos, targetAmount, satsPerByte)
	}
	if _, err := wallet.SumAmounts(values...); err != nil {
		return s.fallback.SelectUtxos(utxos, targetAmount, satsPerByte)
	}

	indexes := getBestCombination(values, targetAmount, fees)
	if len(indexes) <= 0 {
		// Either the utxos are not enough, or the largest ones are not and
		// the remaining ones must be added as well.
		return s.fallback.SelectUtxos(utxos, targetAmount, satsPerByte)
	}

	selectedUtxos := make([]domain.Utxo, 0, len(indexes))
	totalAmount := uint64(0)
	for _, i := range indexes {
		totalAmount += candidates[i].Value
		selectedUtxos = append(selectedUtxos, candidates[i])
	}
	fee := fees[len(indexes)]

	return &domain.CoinSelection{
		Utxos:  selectedUtxos,
		Fee:    fee,
		Change: totalAmount - targetAmount - fee,
	}, nil
}

// getBestCombination attempts to select as less items as possible
// covering the given target amount plus the fee for spending them.
// The strategy here is to try finding exactly 1 item covering the target
// or, otherwise, progressively increase the number of items until
// finding a combination that satisfies the criteria.
// If a combination exceeds the target, it is returned straightaway if its
// total is lower than 10 times the target.
// Otherwise, if no combination satisfies this last criteria, the very first
// one found is returned.
// Items must be sorted in descending order, fees[k] is the fee for spending
// k items.
func getBestCombination(items []uint64, target uint64, fees []uint64) []int {
	var firstFound []int
	for size := 1; size <= len(items); size++ {
		needed := target + fees[size]
		var best []int
		forEachCombination(len(items), size, func(combo []int) bool {
			total := sum(items, combo)
			if total < needed {
				return true
			}
			if needed > math.MaxUint64/10 || total <= needed*10 {
				best = append([]int{}, combo...)
				return false
			}
			if firstFound == nil {
				firstFound = append([]int{}, combo...)
			}
			return true
		})
		if best != nil {
			return best
		}
	}
	return firstFound
}

// forEachCombination calls fn with every combination of size indexes out of
// [0, n) in lexicographic order, until fn returns false.
func forEachCombination(n, size int, fn func([]int) bool) {
	combo := make([]int, 0, size)
	var walk func(offset int) bool
	walk = func(offset int) bool {
		if len(combo) == size {
			return fn(combo)
		}
		for i := offset; i <= n-(size-len(combo)); i++ {
			combo = append(combo, i)
			if !walk(i + 1) {
				return false
			}
			combo = combo[:len(combo)-1]
		}
		return true
	}
	walk(0)
}

func sum(items []uint64, indexes []int) uint64 {
	var total uint64
	for _, i := range indexes {
		total += items[i]
	}
	return total
}
