// Package queue provides the unbounded work queue between the filesystem
// watcher and the single worker. Push never blocks the producer, so a slow
// extraction cannot stall event delivery; the backlog is absorbed in memory.
package queue

import (
	"sync"

	"github.com/paperflow/paperflow/internal/config"
)

// Item pairs a detected file with the profile that matched it.
type Item struct {
	Path    string
	Profile *config.Profile
}

// Queue is a FIFO safe for producers running outside the consumer's
// goroutine. Close is the termination sentinel: the consumer drains whatever
// is queued and then Pop reports done.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Item
	closed bool
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an item. It reports false if the queue is already closed.
func (q *Queue) Push(it Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, it)
	q.cond.Signal()
	return true
}

// Pop blocks until an item is available or the queue is closed and drained.
// The second return is false only in the closed-and-drained case.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// Close stops accepting new items and wakes any blocked consumer.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the current backlog size.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
