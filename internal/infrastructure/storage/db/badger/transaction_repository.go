package dbbadger

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/txevents"
)

// transactionRepository keys the send records by their id. Updates are
// serialized since badgerhold has no row locks.
type transactionRepository struct {
	*txevents.Publisher

	store      *badgerhold.Store
	updateLock sync.Mutex
}

func newTransactionRepository(store *badgerhold.Store) *transactionRepository {
	return &transactionRepository{
		Publisher: txevents.NewPublisher(),
		store:     store,
	}
}

func (r *transactionRepository) AddTransaction(
	_ context.Context, tx *domain.Transaction,
) (bool, error) {
	if err := r.store.Insert(tx.ID, tx); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return false, nil
		}
		return false, err
	}
	r.Publish(domain.TransactionAdded, tx)
	return true, nil
}

func (r *transactionRepository) GetTransaction(
	_ context.Context, id string,
) (*domain.Transaction, error) {
	return r.getTx(id)
}

func (r *transactionRepository) GetTransactionsBySender(
	_ context.Context, sender string,
) ([]*domain.Transaction, error) {
	query := badgerhold.Where("Sender").Eq(sender).SortBy("CreatedAt")

	var txs []domain.Transaction
	if err := r.store.Find(&txs, query); err != nil {
		return nil, err
	}

	result := make([]*domain.Transaction, 0, len(txs))
	for i := range txs {
		result = append(result, &txs[i])
	}
	return result, nil
}

func (r *transactionRepository) UpdateTransaction(
	_ context.Context, id string,
	updateFn func(*domain.Transaction) (*domain.Transaction, error),
) error {
	r.updateLock.Lock()
	defer r.updateLock.Unlock()

	current, err := r.getTx(id)
	if err != nil {
		return err
	}
	updated, err := updateFn(current)
	if err != nil {
		return err
	}
	if err := r.store.Update(id, *updated); err != nil {
		return err
	}

	r.Publish(domain.EventTypeForStatus(updated.Status), updated)
	return nil
}

func (r *transactionRepository) getTx(id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := r.store.Get(id, &tx); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) reset() {
	if err := r.store.Badger().DropAll(); err != nil {
		log.WithError(err).Warn("badger: failed to drop send records")
	}
}

func (r *transactionRepository) close() {
	r.Publisher.Close()
	r.store.Close()
}
