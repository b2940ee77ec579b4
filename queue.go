package tea

import "sync"

// queue is an unbounded multi-producer single-consumer FIFO queue.
// push never blocks; pop suspends the caller until an action arrives.
type queue[A any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []A
	closed bool
}

func newQueue[A any]() *queue[A] {
	q := &queue[A]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues an action. It returns false if the queue is closed,
// in which case the action is dropped.
func (q *queue[A]) push(item A) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.cond.Signal()
	return true
}

// pop returns the next action in enqueue order, blocking until one is
// available. After close, pop drains the remaining actions and then
// returns false.
func (q *queue[A]) pop() (A, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		var zero A
		return zero, false
	}

	item := q.items[0]
	var zero A
	q.items[0] = zero // release the reference
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

// close marks the queue closed. Pending actions remain poppable.
func (q *queue[A]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cond.Broadcast()
}

// len reports the number of pending actions.
func (q *queue[A]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
