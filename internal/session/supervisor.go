// SPDX-License-Identifier: MIT

// Package session supervises the lifecycle of inference workers: admission
// control, run directory allocation, event routing and fan-out.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/livecap/internal/events"
	"github.com/ManuGH/livecap/internal/hub"
	"github.com/ManuGH/livecap/internal/log"
	"github.com/ManuGH/livecap/internal/model"
	"github.com/ManuGH/livecap/internal/replay"
	"github.com/ManuGH/livecap/internal/storage"
	"github.com/ManuGH/livecap/internal/transcript"
	"github.com/ManuGH/livecap/internal/worker"
)

// Defaults for per-session plumbing.
const (
	defaultReplayCapacity  = 512
	defaultReplayTTL       = 5 * time.Minute
	defaultTranscriptLines = 200
)

// MeterSource produces an audio level sample for a session. The default
// source is synthetic; deployments with access to the capture path can
// inject real RMS/peak measurement.
type MeterSource func(sessionID string) (rms, peak float64)

// Options configures a Supervisor.
type Options struct {
	OutRoot         string
	WorkerBin       string
	MaxCUDASessions int
	ReplayCapacity  int
	ReplayTTL       time.Duration
	Storage         storage.Config
	Archive         *storage.Archive // optional commit journal
	TranscriptLines int
	Meter           MeterSource

	// Pump cadence knobs, overridable in tests.
	PumpInterval  time.Duration
	MeterInterval time.Duration
	DrainPerTick  int
}

func (o *Options) withDefaults() {
	if o.MaxCUDASessions <= 0 {
		o.MaxCUDASessions = 1
	}
	if o.ReplayCapacity <= 0 {
		o.ReplayCapacity = defaultReplayCapacity
	}
	if o.ReplayTTL == 0 {
		o.ReplayTTL = defaultReplayTTL
	}
	if o.Storage == (storage.Config{}) {
		o.Storage = storage.Config{MaxCommits: 500, MaxSizeBytes: 4 << 20, MaxAge: time.Hour}
	}
	if o.TranscriptLines <= 0 {
		o.TranscriptLines = defaultTranscriptLines
	}
	if o.Meter == nil {
		o.Meter = syntheticMeter()
	}
	if o.PumpInterval <= 0 {
		o.PumpInterval = 200 * time.Millisecond
	}
	if o.MeterInterval <= 0 {
		o.MeterInterval = 500 * time.Millisecond
	}
	if o.DrainPerTick <= 0 {
		o.DrainPerTick = 20
	}
}

// Supervisor owns the session registry. It is constructed once at program
// entry and passed by reference into the HTTP handlers.
type Supervisor struct {
	opts Options
	hub  *hub.Hub

	mu       sync.Mutex
	sessions map[string]*Session

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a supervisor fanning out through h.
func New(opts Options, h *hub.Hub) *Supervisor {
	opts.withDefaults()
	return &Supervisor{
		opts:     opts,
		hub:      h,
		sessions: make(map[string]*Session),
	}
}

// Start launches the shared pump and the audio level meter. They run
// until Shutdown.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.runPump(ctx)
	go s.runMeter(ctx)
}

// Create admits, spawns and registers a new session. CUDA admission and
// registration happen under one mutex hold so the slot count can never be
// oversubscribed. Spawn failures are synchronous; nothing is published.
func (s *Supervisor) Create(ctx context.Context, cfg model.SessionConfig) (*Session, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		sessionsTotal.WithLabelValues(string(cfg.Device), "invalid").Inc()
		return nil, err
	}

	s.mu.Lock()
	if cfg.Device == model.DeviceCUDA && s.cudaCountLocked() >= s.opts.MaxCUDASessions {
		s.mu.Unlock()
		sessionsTotal.WithLabelValues(string(cfg.Device), "gpu_busy").Inc()
		return nil, ErrGPUBusy
	}
	// Reserve the id inside the lock so a concurrent cuda create cannot
	// slip past admission while we spawn.
	id := uuid.NewString()
	placeholder := &Session{ID: id, Config: cfg, state: model.StateInitializing}
	s.sessions[id] = placeholder
	s.mu.Unlock()

	sess, err := s.build(ctx, id, cfg)
	if err != nil {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		sessionsTotal.WithLabelValues(string(cfg.Device), "spawn_failed").Inc()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	sessionsActive.WithLabelValues(string(cfg.Device)).Inc()
	sessionsTotal.WithLabelValues(string(cfg.Device), "ok").Inc()

	s.emit(sess, events.TypeStatus, map[string]any{"stage": string(model.StateInitializing)})

	s.wg.Add(1)
	go s.watchExit(sess)

	logger := log.WithComponentFromContext(ctx, "supervisor")
	logger.Info().
		Str(log.FieldSessionID, id).
		Str(log.FieldDevice, string(cfg.Device)).
		Str(log.FieldModel, cfg.ASRModel).
		Int("pid", sess.proc.Pid()).
		Msg("session created")
	return sess, nil
}

func (s *Supervisor) build(ctx context.Context, id string, cfg model.SessionConfig) (*Session, error) {
	runDir := filepath.Join(s.opts.OutRoot, id)
	// #nosec G301 -- run dir serves artifacts over the read-only mount.
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	buf, err := replay.New("replay-"+id, s.opts.ReplayCapacity, s.opts.ReplayTTL)
	if err != nil {
		return nil, err
	}
	store, err := storage.New(id, s.opts.Storage)
	if err != nil {
		return nil, err
	}
	sink, err := transcript.NewSink(runDir, s.opts.TranscriptLines)
	if err != nil {
		return nil, err
	}

	proc, err := worker.Spawn(ctx, s.opts.WorkerBin, cfg, runDir)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        id,
		Config:    cfg,
		RunDir:    runDir,
		CreatedAt: time.Now(),
		proc:      proc,
		stamper:   events.NewStamper(),
		replay:    buf,
		store:     store,
		sink:      sink,
		state:     model.StateInitializing,
	}, nil
}

// Stop removes the session from the registry, stops its worker and
// publishes the terminal status.
func (s *Supervisor) Stop(ctx context.Context, sid string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sid]
	if ok {
		delete(s.sessions, sid)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.markStopRequested()
	sess.transition(model.StateStopping)

	if sess.proc == nil {
		// Registration placeholder caught mid-build; nothing to stop.
		return nil
	}
	if err := sess.proc.Stop(ctx); err != nil {
		logger := log.WithComponentFromContext(ctx, "supervisor")
		logger.Warn().
			Err(err).
			Str(log.FieldSessionID, sid).
			Msg("worker stop reported error")
	}
	sess.transition(model.StateStopped)
	sessionsActive.WithLabelValues(string(sess.Config.Device)).Dec()
	workerExits.WithLabelValues("stopped").Inc()

	s.emit(sess, events.TypeStatus, map[string]any{"stage": string(model.StateStopped)})
	return nil
}

// watchExit handles a worker that dies without a stop request: the
// session is unregistered, the admission slot freed, and the failure
// published as an event. The HTTP call that created the session has long
// since returned success.
func (s *Supervisor) watchExit(sess *Session) {
	defer s.wg.Done()
	<-sess.proc.Done()

	if sess.stopWasRequested() {
		return
	}

	s.mu.Lock()
	_, registered := s.sessions[sess.ID]
	if registered {
		delete(s.sessions, sess.ID)
	}
	s.mu.Unlock()
	if !registered {
		return
	}

	s.drainInbox(sess)

	sess.transition(model.StateFailed)
	sessionsActive.WithLabelValues(string(sess.Config.Device)).Dec()
	workerExits.WithLabelValues("crashed").Inc()

	payload := map[string]any{"stage": string(model.StateFailed)}
	if err := sess.proc.ExitErr(); err != nil {
		payload["error"] = err.Error()
	}
	s.emit(sess, events.TypeStatus, payload)

	logger := log.WithComponent("supervisor")
	logger.Warn().
		Str(log.FieldSessionID, sess.ID).
		Err(sess.proc.ExitErr()).
		Msg("worker exited unexpectedly")
}

// drainInbox flushes whatever the worker printed before dying so final
// lines are not lost with the process.
func (s *Supervisor) drainInbox(sess *Session) {
	for _, line := range sess.proc.Inbox().Drain() {
		s.route(sess, line)
	}
}

// Get returns a registered session.
func (s *Supervisor) Get(sid string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	return sess, ok
}

// Sessions returns a snapshot of all registered sessions.
func (s *Supervisor) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// ActiveRunDirs reports whether a path belongs to a registered session's
// run dir. The retention sweeper uses it to exempt live sessions.
func (s *Supervisor) ActiveRunDirs() func(path string) bool {
	return func(path string) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, sess := range s.sessions {
			if sess.RunDir != "" && strings.HasPrefix(path, sess.RunDir) {
				return true
			}
		}
		return false
	}
}

// Shutdown stops the pump and all sessions.
func (s *Supervisor) Shutdown(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	for _, sess := range s.Sessions() {
		if err := s.Stop(ctx, sess.ID); err != nil {
			logger := log.WithComponentFromContext(ctx, "supervisor")
			logger.Warn().
				Err(err).
				Str(log.FieldSessionID, sess.ID).
				Msg("session stop during shutdown failed")
		}
	}
	s.wg.Wait()
}

func (s *Supervisor) cudaCountLocked() int {
	n := 0
	for _, sess := range s.sessions {
		if sess.Config.Device == model.DeviceCUDA {
			n++
		}
	}
	return n
}
