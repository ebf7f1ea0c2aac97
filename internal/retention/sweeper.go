// SPDX-License-Identifier: MIT

// Package retention enforces TTL and size-cap policies over the session
// output tree.
package retention

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ManuGH/livecap/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	sweepDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livecap",
		Name:      "retention_deleted_total",
		Help:      "Files deleted by retention sweeps",
	}, []string{"pass"})

	sweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livecap",
		Name:      "retention_errors_total",
		Help:      "Per-file errors during retention sweeps",
	})
)

// Policy bounds the output tree. TTL 0 disables the age pass; MaxBytes 0
// disables the size pass.
type Policy struct {
	TTL      time.Duration
	MaxBytes int64
}

type fileInfo struct {
	path  string
	size  int64
	mtime time.Time
}

// Sweep walks root and applies the TTL pass then the size pass. skip, when
// non-nil, exempts paths (used to protect active session run dirs).
// Missing files are tolerated silently; other per-file errors are logged
// and the sweep continues. Returns files deleted and bytes remaining.
func Sweep(ctx context.Context, root string, policy Policy, skip func(path string) bool) (int, int64) {
	logger := log.WithComponentFromContext(ctx, "retention")
	deleted := 0

	if policy.TTL > 0 {
		cutoff := time.Now().Add(-policy.TTL)
		for _, f := range enumerate(root, skip) {
			if f.mtime.Before(cutoff) {
				if remove(logger, f.path) {
					deleted++
					sweepDeleted.WithLabelValues("ttl").Inc()
				}
			}
		}
	}

	files := enumerate(root, skip)
	var total int64
	for _, f := range files {
		total += f.size
	}

	if policy.MaxBytes > 0 && total > policy.MaxBytes {
		sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })
		for _, f := range files {
			if total <= policy.MaxBytes {
				break
			}
			if remove(logger, f.path) {
				deleted++
				total -= f.size
				sweepDeleted.WithLabelValues("size").Inc()
			}
		}
	}

	logger.Debug().
		Int("deleted", deleted).
		Int64("remaining_bytes", total).
		Str(log.FieldPath, root).
		Msg("retention sweep complete")
	return deleted, total
}

// Run sweeps root at the given interval until ctx is cancelled.
func Run(ctx context.Context, root string, policy Policy, interval time.Duration, skip func(string) bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Sweep(ctx, root, policy, skip)
		}
	}
}

func enumerate(root string, skip func(string) bool) []fileInfo {
	var files []fileInfo
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if !os.IsNotExist(err) {
				sweepErrors.Inc()
			}
			return nil
		}
		if d.IsDir() {
			if skip != nil && skip(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if skip != nil && skip(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if !os.IsNotExist(err) {
				sweepErrors.Inc()
			}
			return nil
		}
		files = append(files, fileInfo{path: path, size: info.Size(), mtime: info.ModTime()})
		return nil
	})
	return files
}

func remove(logger zerolog.Logger, path string) bool {
	err := os.Remove(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	sweepErrors.Inc()
	logger.Warn().Err(err).Str(log.FieldPath, path).Msg("retention delete failed")
	return false
}
