// SPDX-License-Identifier: MIT

package events

import (
	"sync"
	"time"
)

// Stamper assigns per-session sequence numbers and dual timestamps.
// Sequence numbers form a strictly increasing contiguous series starting
// at 1. Stamping is serialized per session; no cross-session ordering is
// implied.
type Stamper struct {
	mu      sync.Mutex
	nextSeq uint64
	start   time.Time

	// Clock hooks for tests.
	nowWall func() time.Time
	nowMono func() time.Time
}

// NewStamper creates a stamper whose session epoch is now.
func NewStamper() *Stamper {
	now := time.Now()
	return &Stamper{
		nextSeq: 1,
		start:   now,
		nowWall: time.Now,
		nowMono: time.Now,
	}
}

// NewStamperAt creates a stamper with injected clocks. Used by tests and
// by callers that need a fixed session epoch.
func NewStamperAt(start time.Time, nowWall, nowMono func() time.Time) *Stamper {
	return &Stamper{
		nextSeq: 1,
		start:   start,
		nowWall: nowWall,
		nowMono: nowMono,
	}
}

// Stamp returns a new envelope carrying the next sequence number, the
// wall-clock emission time and the monotonic offset from session start.
func (s *Stamper) Stamp(t Type, payload map[string]any) Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := Envelope{
		Type:      t,
		Seq:       s.nextSeq,
		TSServer:  float64(s.nowWall().UnixNano()) / float64(time.Second),
		TSSession: s.nowMono().Sub(s.start).Seconds(),
		Payload:   payload,
	}
	s.nextSeq++
	return env
}

// NextSeq returns the sequence number the next Stamp call will assign.
func (s *Stamper) NextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}
