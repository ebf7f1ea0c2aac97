// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ManuGH/livecap/internal/events"
	"github.com/ManuGH/livecap/internal/log"
	"github.com/ManuGH/livecap/internal/model"
	"github.com/ManuGH/livecap/internal/storage"
	"github.com/ManuGH/livecap/internal/worker"
)

// runPump is the single background task draining worker inboxes. Each
// tick it visits every session and routes at most DrainPerTick lines per
// session, so one chatty worker cannot starve the others.
func (s *Supervisor) runPump(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sess := range s.Sessions() {
				s.pumpSession(sess)
			}
		}
	}
}

func (s *Supervisor) pumpSession(sess *Session) {
	if sess.proc == nil {
		return
	}
	for i := 0; i < s.opts.DrainPerTick; i++ {
		line, ok := sess.proc.Inbox().Get()
		if !ok {
			return
		}
		s.route(sess, line)
	}
}

// route converts one raw worker line into a typed, stamped, fanned-out
// event.
func (s *Supervisor) route(sess *Session, line string) {
	pumpLines.Inc()
	typ, payload := worker.ParseLine(line)

	if typ == events.TypeStatus {
		if stage, _ := payload["stage"].(string); stage == worker.StageOperational {
			if !sess.transition(model.StateOperational) {
				// Already past initializing; demote to a plain log line.
				delete(payload, "stage")
			}
		}
	}

	s.emit(sess, typ, payload)
}

// emit stamps the event, records it in the replay buffer and (for finals
// and status transitions) the commit store, then broadcasts it. The
// per-session emit mutex keeps seq strictly increasing on the wire.
func (s *Supervisor) emit(sess *Session, typ events.Type, payload map[string]any) {
	sess.emitMu.Lock()
	defer sess.emitMu.Unlock()

	env := sess.stamper.Stamp(typ, payload)
	sess.replay.Add(env.Seq, env)

	switch {
	case typ == events.TypeFinalEN:
		commit := sess.store.AddCommit(storage.CommitTranscript, payload, env.Seq)
		s.journal(sess, commit)
		s.mirror(sess, "en", payload, env)
	case typ == events.TypeFinalZH:
		commit := sess.store.AddCommit(storage.CommitTranslation, payload, env.Seq)
		s.journal(sess, commit)
		s.mirror(sess, "zh", payload, env)
	case typ == events.TypePartialEN:
		s.mirrorPartial(sess, "en", payload)
	case typ == events.TypePartialZH:
		s.mirrorPartial(sess, "zh", payload)
	case typ == events.TypeStatus:
		if _, hasStage := payload["stage"]; hasStage {
			sess.store.AddCommit(storage.CommitStatus, payload, env.Seq)
		}
	}

	s.hub.Broadcast(sess.ID, env)
}

func (s *Supervisor) journal(sess *Session, commit storage.Commit) {
	if s.opts.Archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.opts.Archive.Append(ctx, sess.ID, commit); err != nil {
		logger := log.WithComponent("supervisor")
		logger.Warn().
			Err(err).
			Str(log.FieldSessionID, sess.ID).
			Msg("commit journal append failed")
	}
}

func (s *Supervisor) mirror(sess *Session, lang string, payload map[string]any, env events.Envelope) {
	text, _ := payload["text"].(string)
	if text == "" || sess.sink == nil {
		return
	}
	start, end := sess.nextCueWindow(env.TSSession)
	if err := sess.sink.AppendFinal(lang, text, start, end); err != nil {
		logger := log.WithComponent("supervisor")
		logger.Warn().
			Err(err).
			Str(log.FieldSessionID, sess.ID).
			Msg("transcript write failed")
	}
}

func (s *Supervisor) mirrorPartial(sess *Session, lang string, payload map[string]any) {
	text, _ := payload["text"].(string)
	if text == "" || sess.sink == nil {
		return
	}
	if err := sess.sink.WritePartial(lang, text); err != nil {
		logger := log.WithComponent("supervisor")
		logger.Warn().
			Err(err).
			Str(log.FieldSessionID, sess.ID).
			Msg("partial write failed")
	}
}

// runMeter emits audio level samples for operational sessions.
func (s *Supervisor) runMeter(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.MeterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sess := range s.Sessions() {
				if sess.State() != model.StateOperational {
					continue
				}
				rms, peak := s.opts.Meter(sess.ID)
				s.emit(sess, events.TypeVU, map[string]any{"rms": rms, "peak": peak})
			}
		}
	}
}

// syntheticMeter is the default level source: a bounded random walk per
// session. Deployments wire real RMS/peak measurement via Options.Meter.
func syntheticMeter() MeterSource {
	var mu sync.Mutex
	levels := make(map[string]float64)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	return func(sessionID string) (rms, peak float64) {
		mu.Lock()
		defer mu.Unlock()
		level := levels[sessionID]
		level += (rng.Float64() - 0.5) * 0.2
		if level < 0.02 {
			level = 0.02
		}
		if level > 0.9 {
			level = 0.9
		}
		levels[sessionID] = level
		return level, level * (1.1 + rng.Float64()*0.3)
	}
}
