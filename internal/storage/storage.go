// SPDX-License-Identifier: MIT

// Package storage keeps a rolling capped archive of finalized commits for
// one session, bounded by count, total bytes and age.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CommitType classifies a stored commit.
type CommitType string

const (
	CommitTranscript  CommitType = "transcript"
	CommitTranslation CommitType = "translation"
	CommitStatus      CommitType = "status"
)

// Commit is one durable record of a finalized transcript, translation or
// status transition.
type Commit struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"` // monotonic
	Seq       uint64         `json:"seq"`
	Type      CommitType     `json:"commit_type"`
	Data      map[string]any `json:"data"`
	SizeBytes int            `json:"size_bytes"`
}

// Config bounds a session's commit archive. All three caps must be
// positive.
type Config struct {
	MaxCommits   int
	MaxSizeBytes int
	MaxAge       time.Duration
}

// Validate checks the caps.
func (c Config) Validate() error {
	if c.MaxCommits <= 0 {
		return fmt.Errorf("max_commits must be positive, got %d", c.MaxCommits)
	}
	if c.MaxSizeBytes <= 0 {
		return fmt.Errorf("max_size_bytes must be positive, got %d", c.MaxSizeBytes)
	}
	if c.MaxAge <= 0 {
		return fmt.Errorf("max_age must be positive, got %s", c.MaxAge)
	}
	return nil
}

// Stats summarizes archive state.
type Stats struct {
	TotalCommits   int    `json:"total_commits"`
	TotalSizeBytes int    `json:"total_size_bytes"`
	CommitsDropped uint64 `json:"commits_dropped"`
}

// Snapshot is a JSON-serializable view of the archive.
type Snapshot struct {
	SessionID     string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
	TotalCommits  int       `json:"total_commits"`
	RecentCommits []Commit  `json:"recent_commits"`
	StorageStats  Stats     `json:"storage_stats"`
}

// Store holds the commits of a single session. All operations hold the
// store mutex; limits are enforced after every mutation and before every
// read so the triple cap invariant holds whenever a public call returns.
type Store struct {
	mu        sync.Mutex
	sessionID string
	cfg       Config
	commits   []Commit
	totalSize int
	dropped   uint64
	now       func() time.Time
}

// New creates a store for the given session.
func New(sessionID string, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("storage config: %w", err)
	}
	return &Store{sessionID: sessionID, cfg: cfg, now: time.Now}, nil
}

// SetClock replaces the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddCommit appends a commit stamped now, then enforces limits.
func (s *Store) AddCommit(ctype CommitType, data map[string]any, seq uint64) Commit {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Commit{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		Seq:       seq,
		Type:      ctype,
		Data:      data,
		SizeBytes: estimateSize(data),
	}
	s.commits = append(s.commits, c)
	s.totalSize += c.SizeBytes
	s.enforceLimitsLocked()
	return c
}

// GetCommits enforces limits, filters, sorts by timestamp descending and
// applies the limit. limit <= 0 means no limit; ctype "" matches all;
// zero since disables the time filter.
func (s *Store) GetCommits(limit int, ctype CommitType, since time.Time) []Commit {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enforceLimitsLocked()

	out := make([]Commit, 0, len(s.commits))
	for _, c := range s.commits {
		if ctype != "" && c.Type != ctype {
			continue
		}
		if !since.IsZero() && !c.Timestamp.After(since) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetSnapshot returns a serializable snapshot with at most max recent
// commits (newest first).
func (s *Store) GetSnapshot(max int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enforceLimitsLocked()

	recent := make([]Commit, 0, max)
	for i := len(s.commits) - 1; i >= 0 && len(recent) < max; i-- {
		recent = append(recent, s.commits[i])
	}
	return Snapshot{
		SessionID:     s.sessionID,
		Timestamp:     s.now(),
		TotalCommits:  len(s.commits),
		RecentCommits: recent,
		StorageStats:  s.statsLocked(),
	}
}

// Clear removes all commits. The dropped counter is preserved.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = nil
	s.totalSize = 0
}

// Stats returns current archive statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() Stats {
	return Stats{
		TotalCommits:   len(s.commits),
		TotalSizeBytes: s.totalSize,
		CommitsDropped: s.dropped,
	}
}

// enforceLimitsLocked drops from the head in cap order: age, count, size.
func (s *Store) enforceLimitsLocked() {
	cutoff := s.now().Add(-s.cfg.MaxAge)
	for len(s.commits) > 0 && s.commits[0].Timestamp.Before(cutoff) {
		s.dropHeadLocked()
	}
	for len(s.commits) > s.cfg.MaxCommits {
		s.dropHeadLocked()
	}
	for s.totalSize > s.cfg.MaxSizeBytes && len(s.commits) > 0 {
		s.dropHeadLocked()
	}
}

func (s *Store) dropHeadLocked() {
	s.totalSize -= s.commits[0].SizeBytes
	s.commits = s.commits[1:]
	s.dropped++
}

// estimateSize approximates the serialized footprint of a commit at
// creation time. The estimate is fixed for the commit's lifetime.
func estimateSize(data map[string]any) int {
	const overhead = 96 // id, timestamps, seq, type
	raw, err := json.Marshal(data)
	if err != nil {
		return overhead
	}
	return overhead + len(raw)
}
