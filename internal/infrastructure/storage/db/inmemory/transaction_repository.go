package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/txevents"
)

// txRepository stores clones of the send records so that callers can never
// mutate what is persisted.
type txRepository struct {
	*txevents.Publisher

	lock sync.RWMutex
	txs  map[string]*domain.Transaction
}

func newTransactionRepository() *txRepository {
	return &txRepository{
		Publisher: txevents.NewPublisher(),
		txs:       make(map[string]*domain.Transaction),
	}
}

func (r *txRepository) AddTransaction(
	_ context.Context, tx *domain.Transaction,
) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.txs[tx.ID]; ok {
		return false, nil
	}
	r.txs[tx.ID] = tx.Clone()
	r.Publish(domain.TransactionAdded, tx)
	return true, nil
}

func (r *txRepository) GetTransaction(
	_ context.Context, id string,
) (*domain.Transaction, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	tx, ok := r.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

func (r *txRepository) GetTransactionsBySender(
	_ context.Context, sender string,
) ([]*domain.Transaction, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	txs := make([]*domain.Transaction, 0)
	for _, tx := range r.txs {
		if tx.Sender == sender {
			txs = append(txs, tx.Clone())
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt < txs[j].CreatedAt
	})
	return txs, nil
}

func (r *txRepository) UpdateTransaction(
	_ context.Context, id string,
	updateFn func(tx *domain.Transaction) (*domain.Transaction, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	current, ok := r.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	updated, err := updateFn(current.Clone())
	if err != nil {
		return err
	}

	r.txs[id] = updated.Clone()
	r.Publish(domain.EventTypeForStatus(updated.Status), updated)
	return nil
}

func (r *txRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.txs = make(map[string]*domain.Transaction)
}

func (r *txRepository) close() {
	r.Publisher.Close()
}
