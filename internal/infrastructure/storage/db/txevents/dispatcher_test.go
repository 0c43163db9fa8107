package txevents_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/txevents"
)

func TestDispatcher(t *testing.T) {
	t.Parallel()

	var added, failed, other int32
	d := txevents.NewDispatcher()
	d.Register(domain.TransactionAdded, func(domain.TransactionEvent) {
		atomic.AddInt32(&added, 1)
	})
	d.Register(domain.TransactionAdded, func(domain.TransactionEvent) {
		atomic.AddInt32(&added, 1)
	})
	d.Register(domain.TransactionFailed, func(domain.TransactionEvent) {
		atomic.AddInt32(&failed, 1)
	})
	d.Register(domain.TransactionBroadcast, func(domain.TransactionEvent) {
		atomic.AddInt32(&other, 1)
	})

	chEvents := make(chan domain.TransactionEvent)
	done := make(chan struct{})
	go func() {
		d.Listen(chEvents)
		close(done)
	}()

	tx := &domain.Transaction{ID: "id"}
	chEvents <- domain.TransactionEvent{EventType: domain.TransactionAdded, Transaction: tx}
	chEvents <- domain.TransactionEvent{EventType: domain.TransactionUpdated, Transaction: tx}
	chEvents <- domain.TransactionEvent{EventType: domain.TransactionFailed, Transaction: tx}
	close(chEvents)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listen did not return after the channel was closed")
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&added) == 2 && atomic.LoadInt32(&failed) == 1
	}, time.Second, 10*time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&other))
}

func TestPublisher(t *testing.T) {
	t.Parallel()

	var broadcast int32
	d := txevents.NewDispatcher()
	d.Register(domain.TransactionBroadcast, func(event domain.TransactionEvent) {
		if event.Transaction.TxID == "txid" {
			atomic.AddInt32(&broadcast, 1)
		}
	})

	p := txevents.NewPublisher()
	go d.Listen(p.Events())

	tx := &domain.Transaction{ID: "id", TxID: "txid"}
	p.Publish(domain.TransactionBroadcast, tx)
	tx.TxID = "changed"

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&broadcast) == 1
	}, time.Second, 10*time.Millisecond)

	p.Close()
	p.Close()
	require.NotPanics(t, func() {
		p.Publish(domain.TransactionFailed, tx)
	})
}
