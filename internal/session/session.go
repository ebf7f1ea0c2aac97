// SPDX-License-Identifier: MIT

package session

import (
	"sync"
	"time"

	"github.com/ManuGH/livecap/internal/events"
	"github.com/ManuGH/livecap/internal/log"
	"github.com/ManuGH/livecap/internal/model"
	"github.com/ManuGH/livecap/internal/replay"
	"github.com/ManuGH/livecap/internal/storage"
	"github.com/ManuGH/livecap/internal/transcript"
	"github.com/ManuGH/livecap/internal/worker"
)

// Session is one live transcription/translation pipeline. It exclusively
// owns a worker process, a run directory, and the per-session event
// plumbing (stamper, replay buffer, commit store, transcript sink).
type Session struct {
	ID        string
	Config    model.SessionConfig
	RunDir    string
	CreatedAt time.Time

	proc    *worker.Process
	stamper *events.Stamper
	replay  *replay.Buffer
	store   *storage.Store
	sink    *transcript.Sink

	// emitMu serializes stamp+append+broadcast so subscribers observe
	// strictly increasing seq.
	emitMu sync.Mutex

	mu            sync.Mutex
	state         model.SessionState
	stopRequested bool
	lastCueEnd    time.Duration
}

// State returns the current lifecycle state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Replay exposes the session's replay buffer for resume handling.
func (s *Session) Replay() *replay.Buffer { return s.replay }

// Store exposes the session's commit store.
func (s *Session) Store() *storage.Store { return s.store }

// transition applies a state change if the state machine allows it.
// Returns false when the transition is illegal, which callers treat as
// "someone else already moved the session on".
func (s *Session) transition(to model.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(to) {
		return false
	}
	logger := log.WithComponent("session")
	logger.Debug().
		Str(log.FieldSessionID, s.ID).
		Str(log.FieldOldState, string(s.state)).
		Str(log.FieldNewState, string(to)).
		Msg("state transition")
	s.state = to
	return true
}

func (s *Session) markStopRequested() {
	s.mu.Lock()
	s.stopRequested = true
	s.mu.Unlock()
}

func (s *Session) stopWasRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

// nextCueWindow derives a subtitle cue window ending at the envelope's
// session offset. The sink clamps overlapping starts.
func (s *Session) nextCueWindow(tsSession float64) (start, end time.Duration) {
	const assumedSegment = 2 * time.Second
	end = time.Duration(tsSession * float64(time.Second))
	start = end - assumedSegment
	s.mu.Lock()
	if start < s.lastCueEnd {
		start = s.lastCueEnd
	}
	s.lastCueEnd = end
	s.mu.Unlock()
	return start, end
}
