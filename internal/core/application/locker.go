package application

import (
	"context"
	"sync"
)

// addressLocker serializes operations on the same address. Waiting for a
// lock can be interrupted by cancelling the context.
type addressLocker struct {
	lock  *sync.Mutex
	locks map[string]*addressLock
}

type addressLock struct {
	ch   chan struct{}
	refs int
}

func newAddressLocker() *addressLocker {
	return &addressLocker{
		lock:  &sync.Mutex{},
		locks: make(map[string]*addressLock),
	}
}

// acquire blocks until the lock for the given address is obtained and
// returns the function to release it.
func (l *addressLocker) acquire(
	ctx context.Context, address string,
) (func(), error) {
	l.lock.Lock()
	al, ok := l.locks[address]
	if !ok {
		al = &addressLock{ch: make(chan struct{}, 1)}
		l.locks[address] = al
	}
	al.refs++
	l.lock.Unlock()

	select {
	case al.ch <- struct{}{}:
		once := &sync.Once{}
		return func() {
			once.Do(func() {
				<-al.ch
				l.release(address, al)
			})
		}, nil
	case <-ctx.Done():
		l.release(address, al)
		return nil, ctx.Err()
	}
}

func (l *addressLocker) release(address string, al *addressLock) {
	l.lock.Lock()
	defer l.lock.Unlock()

	al.refs--
	if al.refs <= 0 {
		delete(l.locks, address)
	}
}
