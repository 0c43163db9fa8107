package domain

import (
	"context"
	"fmt"
)

const (
	TransactionAdded TransactionEventType = iota
	TransactionUpdated
	TransactionBroadcast
	TransactionFailed
)

var (
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	txTypeString = map[TransactionEventType]string{
		TransactionAdded:     "TransactionAdded",
		TransactionUpdated:   "TransactionUpdated",
		TransactionBroadcast: "TransactionBroadcast",
		TransactionFailed:    "TransactionFailed",
	}
)

type TransactionEventType int

func (t TransactionEventType) String() string {
	return txTypeString[t]
}

// TransactionEvent holds info about an event occured within the repository.
type TransactionEvent struct {
	EventType   TransactionEventType
	Transaction *Transaction
}

// EventTypeForStatus returns the type of the event to publish when a
// transaction reaches the given status.
func EventTypeForStatus(status TxStatus) TransactionEventType {
	switch status {
	case TxStatusBroadcast:
		return TransactionBroadcast
	case TxStatusFailed:
		return TransactionFailed
	default:
		return TransactionUpdated
	}
}

// TransactionRepository is the abstraction for any kind of database intended
// to persist send records.
type TransactionRepository interface {
	// AddTransaction adds the provided transaction to the repository by
	// preventing duplicates.
	// Generates a TransactionAdded event if successful.
	AddTransaction(ctx context.Context, tx *Transaction) (bool, error)
	// GetTransaction returns the Transaction identified by the given id.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// GetTransactionsBySender returns all transactions sent by the given
	// address, oldest first.
	GetTransactionsBySender(
		ctx context.Context, sender string,
	) ([]*Transaction, error)
	// UpdateTransaction allows to commit multiple changes to the same
	// Transaction in a transactional way.
	// Generates an event based on the resulting status of the tx.
	UpdateTransaction(
		ctx context.Context, id string,
		updateFn func(tx *Transaction) (*Transaction, error),
	) error
	// GetEventChannel returns a channel receiving the repository events, if anybody listens.
	GetEventChannel() chan TransactionEvent
}
