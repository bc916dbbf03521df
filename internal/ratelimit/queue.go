/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

const minDrainInterval = time.Millisecond

type queueProvider func(key string) *partitionQueue

// waiter is a queued request. ready is closed when the permit is granted (or granting failed with err).
type waiter struct {
	arrivalOrder uint64
	ready        chan struct{}
	elem         *list.Element
	granted      bool
	err          error
}

// partitionQueue holds requests waiting for a permit of a single partition, oldest first.
type partitionQueue struct {
	mu         sync.Mutex
	waiters    *list.List
	draining   bool
	retryAfter time.Duration
	retired    bool
}

// retire implements partitionState. A queue stays in use while it has waiters or is being drained.
func (q *partitionQueue) retire(time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiters.Len() != 0 || q.draining {
		return false
	}
	q.retired = true
	return true
}

// lock locks the queue of the partition, retired queues are skipped.
func (getQueue queueProvider) lock(key string) *partitionQueue {
	q := getQueue(key)
	q.mu.Lock()
	for q.retired {
		q.mu.Unlock()
		q = getQueue(key)
		q.mu.Lock()
	}
	return q
}

func newPartitionQueue() *partitionQueue {
	return &partitionQueue{waiters: list.New()}
}

// enqueue must be called with q.mu held.
func (q *partitionQueue) enqueue(arrivalOrder uint64) *waiter {
	w := &waiter{arrivalOrder: arrivalOrder, ready: make(chan struct{})}
	w.elem = q.waiters.PushBack(w)
	return w
}

// dequeue must be called with q.mu held and a non-empty queue.
func (q *partitionQueue) dequeue() *waiter {
	w := q.waiters.Remove(q.waiters.Front()).(*waiter)
	w.granted = true
	return w
}

// leave removes the waiter from the queue unless the permit has already been granted to it.
func (q *partitionQueue) leave(w *waiter) (removed bool, retryAfter time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w.granted {
		return false, 0
	}
	q.waiters.Remove(w.elem)
	return true, q.retryAfter
}

func drainInterval(d time.Duration) time.Duration {
	if d < minDrainInterval {
		return minDrainInterval
	}
	return d
}

// newQueueProvider returns a provider of per-partition queues.
// If maxKeys is 0, all keys share the single queue.
func newQueueProvider(maxKeys int) queueProvider {
	if maxKeys == 0 {
		q := newPartitionQueue()
		return func(_ string) *partitionQueue { return q }
	}
	keysZone, _ := newPartitionStore(maxKeys, newPartitionQueue) // Error is always nil here.
	return keysZone.get
}
