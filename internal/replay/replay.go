// SPDX-License-Identifier: MIT

// Package replay keeps a sequence-stamped, TTL and capacity bounded
// history of outbound envelopes so a reconnecting subscriber can resume
// without gaps.
package replay

import (
	"time"

	"github.com/ManuGH/livecap/internal/events"
	"github.com/ManuGH/livecap/internal/queue"
)

// Record is one retained envelope with its insertion instant.
type Record struct {
	Seq      uint64
	Envelope events.Envelope
	At       time.Time // monotonic insertion instant
}

// Buffer retains the most recent envelopes of one session. A record is
// evicted when the buffer is full (drop-oldest) or when it is older than
// the TTL at the next Add/GetAfter call. TTL 0 disables age pruning.
type Buffer struct {
	q   *queue.Queue[Record]
	ttl time.Duration
	now func() time.Time
}

// New creates a buffer. Capacity must be positive.
func New(name string, capacity int, ttl time.Duration) (*Buffer, error) {
	q, err := queue.New[Record](name, capacity)
	if err != nil {
		return nil, err
	}
	return &Buffer{q: q, ttl: ttl, now: time.Now}, nil
}

// SetClock replaces the time source. Test hook.
func (b *Buffer) SetClock(now func() time.Time) { b.now = now }

// Add prunes expired records, then appends env stamped with now.
func (b *Buffer) Add(seq uint64, env events.Envelope) {
	b.prune()
	b.q.Put(Record{Seq: seq, Envelope: env, At: b.now()})
}

// GetAfter prunes expired records, then returns the envelopes of all
// records with Seq > lastSeq in insertion order.
func (b *Buffer) GetAfter(lastSeq uint64) []events.Envelope {
	b.prune()
	var out []events.Envelope
	for _, rec := range b.q.Snapshot() {
		if rec.Seq > lastSeq {
			out = append(out, rec.Envelope)
		}
	}
	return out
}

// Telemetry exposes the underlying queue snapshot.
func (b *Buffer) Telemetry() queue.Telemetry {
	return b.q.Telemetry()
}

// Size returns the number of retained records after pruning.
func (b *Buffer) Size() int {
	b.prune()
	return b.q.Size()
}

func (b *Buffer) prune() {
	if b.ttl <= 0 {
		return
	}
	cutoff := b.now().Add(-b.ttl)
	b.q.DropFrontWhile(queue.DropTTLExpired, func(rec Record) bool {
		return rec.At.Before(cutoff)
	})
}
