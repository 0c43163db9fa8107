package txevents

import (
	"sync"

	"github.com/vulpemventures/dinghy/internal/core/domain"
)

// Publisher is embedded by the tx repositories to emit their events.
// Every event goes to the internal channel consumed by a Dispatcher, and
// to the external one only if somebody is receiving from it.
type Publisher struct {
	lock     sync.Mutex
	closed   bool
	internal chan domain.TransactionEvent
	external chan domain.TransactionEvent
}

func NewPublisher() *Publisher {
	return &Publisher{
		internal: make(chan domain.TransactionEvent),
		external: make(chan domain.TransactionEvent),
	}
}

// Publish emits an event for a snapshot of the given tx without blocking the
// caller. Events published after Close are dropped.
func (p *Publisher) Publish(
	eventType domain.TransactionEventType, tx *domain.Transaction,
) {
	event := domain.TransactionEvent{
		EventType:   eventType,
		Transaction: tx.Clone(),
	}
	go func() {
		p.lock.Lock()
		defer p.lock.Unlock()

		if p.closed {
			return
		}
		p.internal <- event
		select {
		case p.external <- event:
		default:
		}
	}()
}

func (p *Publisher) Events() <-chan domain.TransactionEvent {
	return p.internal
}

func (p *Publisher) GetEventChannel() chan domain.TransactionEvent {
	return p.external
}

func (p *Publisher) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.internal)
	close(p.external)
}
