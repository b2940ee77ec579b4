package tea

import (
	"sync"
	"sync/atomic"
)

// ObserverFunc is a change-notification callback. It carries no payload:
// observers re-read the model if they care about the new state.
type ObserverFunc func()

// SubscribeOption configures a subscription
type SubscribeOption func(*observer)

// Once configures the observer to be notified only once
func Once() SubscribeOption {
	return func(o *observer) {
		o.once = true
	}
}

// observer wraps a callback with subscription metadata
type observer struct {
	fn       ObserverFunc
	once     bool
	executed int32 // For once observers, atomically tracks if notified
}

// Subscription identifies a registered observer and allows cancelling it.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// Cancel removes the observer. It is safe to call multiple times.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// PanicHandler is called when an observer panics during notification
type PanicHandler func(panicValue any)

// cell holds the single committed state value and its observer list.
// Only the update loop writes the value; any goroutine may read it.
type cell[S comparable] struct {
	mu    sync.RWMutex
	value S

	obsMu     sync.RWMutex
	observers []*observer
}

func newCell[S comparable]() *cell[S] {
	return &cell[S]{}
}

// load returns the latest committed state.
func (c *cell[S]) load() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// commit applies mutate to the current value under the write lock and
// reports whether the committed value differs from the previous one.
func (c *cell[S]) commit(mutate func(S) S) (next S, changed bool) {
	c.mu.Lock()
	prev := c.value
	next = mutate(prev)
	c.value = next
	c.mu.Unlock()
	return next, next != prev
}

func (c *cell[S]) subscribe(fn ObserverFunc, opts ...SubscribeOption) *Subscription {
	o := &observer{fn: fn}
	for _, opt := range opts {
		opt(o)
	}

	c.obsMu.Lock()
	c.observers = append(c.observers, o)
	c.obsMu.Unlock()

	return &Subscription{cancel: func() { c.remove(o) }}
}

// notify fires every registered observer once. Observers run on the update
// loop goroutine; a panicking observer is isolated and reported through
// onPanic.
func (c *cell[S]) notify(onPanic PanicHandler) {
	c.obsMu.RLock()
	observers := make([]*observer, len(c.observers))
	copy(observers, c.observers)
	c.obsMu.RUnlock()

	var toRemove []*observer
	for _, o := range observers {
		if o.once {
			if !atomic.CompareAndSwapInt32(&o.executed, 0, 1) {
				continue
			}
			toRemove = append(toRemove, o)
		}
		invokeObserver(o, onPanic)
	}

	for _, o := range toRemove {
		c.remove(o)
	}
}

func invokeObserver(o *observer, onPanic PanicHandler) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	o.fn()
}

func (c *cell[S]) remove(target *observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	for i, o := range c.observers {
		if o == target {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}
