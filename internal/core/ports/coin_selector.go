package ports

import "github.com/vulpemventures/dinghy/internal/core/domain"

// CoinSelector is the abstraction for any kind of service intended to return a
// subset of the given utxos covering the target amount plus the fee required
// to spend them, based on a specific strategy.
type CoinSelector interface {
	// SelectUtxos implements a certain coin selection strategy. It must not
	// reorder the given slice and must return an *InsufficientFundsError
	// if the utxos can't cover the target.
	SelectUtxos(
		utxos []domain.Utxo, targetAmount, satsPerByte uint64,
	) (*domain.CoinSelection, error)
}
