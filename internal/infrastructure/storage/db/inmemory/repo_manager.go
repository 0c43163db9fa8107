package inmemory

import (
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/txevents"
)

// repoManager keeps the send records in memory. Data is lost on Close.
type repoManager struct {
	txRepository *txRepository
	dispatcher   *txevents.Dispatcher
}

func NewRepoManager() ports.RepoManager {
	rm := &repoManager{
		txRepository: newTransactionRepository(),
		dispatcher:   txevents.NewDispatcher(),
	}
	go rm.dispatcher.Listen(rm.txRepository.Events())
	return rm
}

func (rm *repoManager) TransactionRepository() domain.TransactionRepository {
	return rm.txRepository
}

func (rm *repoManager) RegisterHandlerForTxEvent(
	eventType domain.TransactionEventType, handler ports.TxEventHandler,
) {
	rm.dispatcher.Register(eventType, handler)
}

func (rm *repoManager) Reset() {
	rm.txRepository.reset()
}

func (rm *repoManager) Close() {
	rm.txRepository.close()
}
