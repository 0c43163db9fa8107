package dbbadger

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/txevents"
)

const (
	valueLogGCInterval     = 30 * time.Minute
	valueLogGCDiscardRatio = 0.5
)

// repoManager owns the badgerhold store of the send records and the
// goroutine running its value log GC.
type repoManager struct {
	txRepository *transactionRepository
	dispatcher   *txevents.Dispatcher
	chQuit       chan struct{}
}

// NewRepoManager opens the tx store under baseDbDir/txs. An empty baseDbDir
// opens an in-memory store, used in tests.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	var txDir string
	if len(baseDbDir) > 0 {
		txDir = filepath.Join(baseDbDir, "txs")
	}

	chQuit := make(chan struct{})
	txDb, err := createDb(txDir, logger, chQuit)
	if err != nil {
		return nil, fmt.Errorf("opening tx db: %w", err)
	}

	rm := &repoManager{
		txRepository: newTransactionRepository(txDb),
		dispatcher:   txevents.NewDispatcher(),
		chQuit:       chQuit,
	}
	go rm.dispatcher.Listen(rm.txRepository.Events())

	return rm, nil
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
	close(rm.chQuit)
	rm.txRepository.close()
}

func createDb(
	dbDir string, logger badger.Logger, chQuit <-chan struct{},
) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		go runValueLogGC(db.Badger(), chQuit)
	}
	return db, nil
}

func runValueLogGC(db *badger.DB, chQuit <-chan struct{}) {
	ticker := time.NewTicker(valueLogGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := db.RunValueLogGC(valueLogGCDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				log.WithError(err).Warn("badger: value log gc failed")
			}
		case <-chQuit:
			return
		}
	}
}
