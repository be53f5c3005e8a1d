package engine

import (
	"sync"
	"time"
)

// digestEntry is a notification whose external delivery was deferred, with
// the channel set that was routable when it was enqueued kept only as a
// hint; flushing re-routes against live preferences.
type digestEntry struct {
	notification Notification
	enqueuedAt   time.Time
}

// DigestQueue holds notifications awaiting a digest window. The queue only
// records the deferral decision; cadence belongs to an external scheduler.
type DigestQueue struct {
	mu      sync.Mutex
	entries []digestEntry
}

// NewDigestQueue constructs an empty queue.
func NewDigestQueue() *DigestQueue {
	return &DigestQueue{}
}

// Enqueue defers a notification's external delivery.
func (q *DigestQueue) Enqueue(n Notification, now time.Time) {
	q.mu.Lock()
	q.entries = append(q.entries, digestEntry{notification: n.Clone(), enqueuedAt: now})
	q.mu.Unlock()
}

// Pending returns the number of deferred notifications.
func (q *DigestQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Drain removes and returns every deferred notification in enqueue order.
func (q *DigestQueue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := make([]Notification, 0, len(q.entries))
	for _, entry := range q.entries {
		drained = append(drained, entry.notification)
	}
	q.entries = nil
	return drained
}

// Requeue puts notifications back at the front of the queue, preserving
// order, for entries that are still suppressed at flush time.
func (q *DigestQueue) Requeue(items []Notification, now time.Time) {
	if len(items) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	restored := make([]digestEntry, 0, len(items)+len(q.entries))
	for _, item := range items {
		restored = append(restored, digestEntry{notification: item.Clone(), enqueuedAt: now})
	}
	q.entries = append(restored, q.entries...)
}
