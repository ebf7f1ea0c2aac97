// SPDX-License-Identifier: MIT

// Package queue implements a fixed-capacity FIFO with a drop-oldest
// overflow policy and per-queue drop telemetry.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "livecap",
	Name:      "queue_dropped_total",
	Help:      "Total items dropped from bounded queues",
}, []string{"queue", "reason"})

// DropReason explains why an item was discarded.
type DropReason string

const (
	DropCapacity   DropReason = "capacity"
	DropTTLExpired DropReason = "ttl_expired"
)

// Telemetry is a point-in-time snapshot of queue state and drop counters.
type Telemetry struct {
	Name           string     `json:"name"`
	Size           int        `json:"size"`
	Capacity       int        `json:"capacity"`
	Utilization    float64    `json:"utilization"`
	TotalDropped   uint64     `json:"total_dropped"`
	RecentDrops    uint64     `json:"recent_drops"`
	LastDropTime   time.Time  `json:"last_drop_time"`
	LastDropReason DropReason `json:"last_drop_reason"`
}

// Queue is a mutex-guarded FIFO of fixed capacity. Put never blocks and
// never rejects: when full, the oldest item is discarded and the drop is
// recorded with reason "capacity".
type Queue[T any] struct {
	mu    sync.Mutex
	name  string
	items []T
	cap   int

	totalDropped   uint64
	recentDrops    uint64 // drops since the last Telemetry call
	lastDropTime   time.Time
	lastDropReason DropReason
}

// New creates a queue. Capacity must be at least 1.
func New[T any](name string, capacity int) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue %q: capacity must be positive, got %d", name, capacity)
	}
	return &Queue[T]{
		name:  name,
		items: make([]T, 0, capacity),
		cap:   capacity,
	}, nil
}

// Put appends an item, evicting the oldest one first when full.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.cap {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.recordDropLocked(DropCapacity)
	}
	q.items = append(q.items, item)
}

// Get removes and returns the front item. ok is false when empty.
func (q *Queue[T]) Get() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	copy(q.items, q.items[1:])
	var zero T
	q.items[len(q.items)-1] = zero
	q.items = q.items[:len(q.items)-1]
	return item, true
}

// Peek returns the front item without removing it.
func (q *Queue[T]) Peek() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item, false
	}
	return q.items[0], true
}

// Size returns the current number of queued items.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the fixed capacity.
func (q *Queue[T]) Capacity() int {
	return q.cap
}

// Clear discards all queued items. Cleared items do not count as drops.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// Drain removes and returns all queued items in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	return out
}

// DropFrontWhile removes items from the front while pred holds, recording
// each removal as a drop with the given reason. Returns the number
// dropped. Used by the replay buffer for TTL pruning.
func (q *Queue[T]) DropFrontWhile(reason DropReason, pred func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := 0
	for len(q.items) > 0 && pred(q.items[0]) {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.recordDropLocked(reason)
		dropped++
	}
	return dropped
}

// Snapshot returns a copy of the queued items without consuming them.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// Telemetry returns a snapshot of queue state. RecentDrops resets on
// every call.
func (q *Queue[T]) Telemetry() Telemetry {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := Telemetry{
		Name:           q.name,
		Size:           len(q.items),
		Capacity:       q.cap,
		Utilization:    float64(len(q.items)) / float64(q.cap),
		TotalDropped:   q.totalDropped,
		RecentDrops:    q.recentDrops,
		LastDropTime:   q.lastDropTime,
		LastDropReason: q.lastDropReason,
	}
	q.recentDrops = 0
	return t
}

func (q *Queue[T]) recordDropLocked(reason DropReason) {
	q.totalDropped++
	q.recentDrops++
	q.lastDropTime = time.Now()
	q.lastDropReason = reason
	droppedTotal.WithLabelValues(q.name, string(reason)).Inc()
}
