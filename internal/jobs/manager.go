// SPDX-License-Identifier: MIT

// Package jobs runs model downloads in the background and reports their
// progress over the reserved "_download" event channel.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/ManuGH/livecap/internal/events"
	"github.com/ManuGH/livecap/internal/hub"
	"github.com/ManuGH/livecap/internal/log"
)

var downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "livecap",
	Name:      "downloads_total",
	Help:      "Model downloads by type and result",
}, []string{"type", "result"})

// Type selects the model family a download belongs to.
type Type string

const (
	TypeASR Type = "asr"
	TypeMT  Type = "mt"
)

func (t Type) valid() bool { return t == TypeASR || t == TypeMT }

// Fetcher retrieves the artifact for repoID into destDir. progress is
// called with a percentage in [0,100]; implementations may call it as
// often as they like, the manager throttles fan-out.
type Fetcher interface {
	Fetch(ctx context.Context, repoID string, typ Type, destDir string, progress func(pct int)) error
}

// Status is the lifecycle of one download job.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is a snapshot of one download.
type Job struct {
	ID       string `json:"job_id"`
	RepoID   string `json:"repo_id"`
	Type     Type   `json:"type"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// Manager starts download jobs and broadcasts their progress. Progress
// events carry their own sequence numbers, independent of any session.
type Manager struct {
	hub     *hub.Hub
	fetcher Fetcher
	destDir string
	stamper *events.Stamper

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewManager creates a manager fetching into destDir. A nil fetcher gets
// the default HTTP fetcher.
func NewManager(h *hub.Hub, destDir string, fetcher Fetcher) *Manager {
	if fetcher == nil {
		fetcher = NewHTTPFetcher("", 0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		hub:     h,
		fetcher: fetcher,
		destDir: destDir,
		stamper: events.NewStamper(),
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*Job),
	}
}

// StartDownload validates the request and launches the job. The returned
// id is already registered; the 0% progress event is broadcast before
// StartDownload returns so subscribers never miss the start marker.
func (m *Manager) StartDownload(repoID string, typ Type) (string, error) {
	if repoID == "" {
		return "", fmt.Errorf("repo_id must not be empty")
	}
	if !typ.valid() {
		return "", fmt.Errorf("unknown model type %q", typ)
	}

	job := &Job{
		ID:     uuid.NewString(),
		RepoID: repoID,
		Type:   typ,
		Status: StatusRunning,
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.publishProgress(job, 0)

	m.wg.Add(1)
	go m.run(job)

	logger := log.WithComponent("jobs")
	logger.Info().
		Str(log.FieldJobID, job.ID).
		Str("repo_id", repoID).
		Str("model_type", string(typ)).
		Msg("download started")
	return job.ID, nil
}

// Get returns a snapshot of a job.
func (m *Manager) Get(jobID string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Close cancels running jobs and waits for their goroutines.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) run(job *Job) {
	defer m.wg.Done()

	// Intermediate ticks are best effort; start and completion always go
	// out regardless of the limiter.
	limiter := rate.NewLimiter(rate.Limit(4), 1)
	progress := func(pct int) {
		if pct <= 0 || pct >= 100 {
			return
		}
		if !limiter.Allow() {
			return
		}
		m.publishProgress(job, pct)
	}

	err := m.fetcher.Fetch(m.ctx, job.RepoID, job.Type, m.destDir, progress)
	if err != nil {
		m.finish(job, StatusFailed)
		downloadsTotal.WithLabelValues(string(job.Type), "failed").Inc()
		env := m.stamper.Stamp(events.TypeError, map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		m.hub.Broadcast(hub.DownloadChannel, env)
		logger := log.WithComponent("jobs")
		logger.Warn().
			Err(err).
			Str(log.FieldJobID, job.ID).
			Str("repo_id", job.RepoID).
			Msg("download failed")
		return
	}

	m.finish(job, StatusDone)
	downloadsTotal.WithLabelValues(string(job.Type), "ok").Inc()
	m.publishProgress(job, 100)
	logger := log.WithComponent("jobs")
	logger.Info().
		Str(log.FieldJobID, job.ID).
		Str("repo_id", job.RepoID).
		Msg("download complete")
}

func (m *Manager) finish(job *Job, st Status) {
	m.mu.Lock()
	job.Status = st
	if st == StatusDone {
		job.Progress = 100
	}
	m.mu.Unlock()
}

func (m *Manager) publishProgress(job *Job, pct int) {
	m.mu.Lock()
	if pct > job.Progress {
		job.Progress = pct
	}
	m.mu.Unlock()

	env := m.stamper.Stamp(events.TypeDownloadProgress, map[string]any{
		"job_id":   job.ID,
		"repo_id":  job.RepoID,
		"progress": pct,
	})
	m.hub.Broadcast(hub.DownloadChannel, env)
}
