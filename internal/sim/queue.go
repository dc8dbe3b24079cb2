package sim

import (
	"sync"

	"github.com/signalsfoundry/npc-arena/kb"
)

// Pair is a combat candidate: two registry handles, neither of which keeps
// its actor alive.
type Pair struct {
	A, B kb.Handle
}

// Queue is an unbounded FIFO of candidate pairs with a blocking consumer
// side. Stop wakes every waiter; items pushed before or after Stop are still
// handed out until the queue is empty.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Pair
	stopped bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends p and wakes one waiting consumer. It never blocks on
// consumers and never fails.
func (q *Queue) Push(p Pair) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available or Stop was called. It returns
// false only when the queue is stopped and empty.
func (q *Queue) Pop() (Pair, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Pair{}, false
	}
	p := q.items[0]
	q.items[0] = Pair{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Drop the drained backing array so it does not grow forever.
		q.items = nil
	}
	return p, true
}

// Stop marks the queue stopped and wakes every waiter. It is idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Stopped reports whether Stop has been called.
func (q *Queue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Len returns the number of queued pairs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
