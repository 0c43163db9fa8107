package ports

import (
	"context"

	"github.com/vulpemventures/dinghy/internal/core/domain"
)

// ChainDataProvider is the abstraction for any kind of service intended to
// source data from the blockchain and to publish transactions to the network.
// Read methods are idempotent and may be retried, BroadcastTransaction is
// never retried by the implementations.
// Failures are returned as *domain.BackendError, while broadcasts refused by
// the backend are returned as *domain.BroadcastRejectedError.
type ChainDataProvider interface {
	// GetBalance returns the balance in sats of the given address, including
	// unconfirmed funds.
	GetBalance(ctx context.Context, address string) (uint64, error)
	// GetUtxos returns a fresh snapshot of the unspents of the given address.
	GetUtxos(ctx context.Context, address string) ([]domain.Utxo, error)
	// GetHistory returns the transactions involving the given address.
	GetHistory(ctx context.Context, address string) ([]domain.TxSummary, error)
	// EstimateFee returns the fee amount suggested by the backend for a tx
	// with the given number of inputs and outputs. It's advisory only.
	EstimateFee(ctx context.Context, numInputs, numOutputs int) (uint64, error)
	// BroadcastTransaction publishes the given hex encoded tx and returns the
	// identifier assigned by the backend.
	BroadcastTransaction(ctx context.Context, txHex string) (string, error)
	// IsValidAddress returns whether the backend recognizes the given address.
	IsValidAddress(ctx context.Context, address string) (bool, error)
	// Close closes the connection with the backend, if any.
	Close()
}
