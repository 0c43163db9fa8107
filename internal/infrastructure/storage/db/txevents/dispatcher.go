// Package txevents fans out the events published by a tx repository to the
// handlers registered on its repo manager.
package txevents

import (
	"sync"

	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
)

type Dispatcher struct {
	lock     sync.RWMutex
	handlers map[domain.TransactionEventType][]ports.TxEventHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.TransactionEventType][]ports.TxEventHandler),
	}
}

// Register adds a handler for the given event type. Multiple handlers for
// the same type are all called.
func (d *Dispatcher) Register(
	eventType domain.TransactionEventType, handler ports.TxEventHandler,
) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Listen calls the handlers of every event received on the channel, each
// in its own goroutine. It returns once the channel is closed.
func (d *Dispatcher) Listen(chEvents <-chan domain.TransactionEvent) {
	for event := range chEvents {
		for _, handler := range d.handlersFor(event.EventType) {
			go handler(event)
		}
	}
}

func (d *Dispatcher) handlersFor(
	eventType domain.TransactionEventType,
) []ports.TxEventHandler {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return append([]ports.TxEventHandler(nil), d.handlers[eventType]...)
}
