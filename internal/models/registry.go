// SPDX-License-Identifier: MIT

// Package models indexes the on-disk model store. Layout:
//
//	<models_dir>/asr/<id>.bin   model artifact
//	<models_dir>/asr/<id>.json  optional manifest (languages, tokens)
//	<models_dir>/mt/...         same for translation models
//
// The registry rescans when the watcher reports changes, so a finished
// download shows up without a restart.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/livecap/internal/cache"
	"github.com/ManuGH/livecap/internal/log"
)

// ErrModelNotFound is returned for capability or language queries
// against an unknown model.
var ErrModelNotFound = errors.New("model not found")

const (
	kindASR = "asr"
	kindMT  = "mt"

	capsCacheTTL = 10 * time.Minute
)

// Info describes one installed model.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Capabilities is the probe result for an ASR model.
type Capabilities struct {
	Kind         string            `json:"kind"`
	Model        string            `json:"model"`
	SupportsAuto bool              `json:"supports_auto"`
	Languages    []string          `json:"languages"`
	Tokens       map[string]string `json:"tokens"`
}

// Registry is the in-memory index over the models directory.
type Registry struct {
	dir   string
	cache cache.Cache
	sf    singleflight.Group

	mu        sync.RWMutex
	asr       []Info
	mt        []Info
	manifests map[string]manifest // key kind/id

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New scans dir once. The cache may be shared with other components; a
// nil cache disables memoization.
func New(dir string, c cache.Cache) (*Registry, error) {
	if c == nil {
		c = cache.NewNoOp()
	}
	r := &Registry{dir: dir, cache: c, done: make(chan struct{})}
	if err := r.Rescan(); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch starts the fsnotify loop over both kind directories. Missing
// directories are created so the watch can attach.
func (r *Registry) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("models watcher: %w", err)
	}
	for _, kind := range []string{kindASR, kindMT} {
		sub := filepath.Join(r.dir, kind)
		// #nosec G301 -- model dirs are served read-only.
		if err := os.MkdirAll(sub, 0o755); err != nil {
			_ = w.Close()
			return err
		}
		if err := w.Add(sub); err != nil {
			_ = w.Close()
			return err
		}
	}
	r.watcher = w
	go r.watchLoop()
	return nil
}

// Close stops the watcher.
func (r *Registry) Close() {
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	close(r.done)
}

// watchLoop debounces bursts of filesystem events into a single rescan.
func (r *Registry) watchLoop() {
	logger := log.WithComponent("models")
	var timer *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(250*time.Millisecond, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(250 * time.Millisecond)
			}
		case <-trigger:
			timer = nil
			if err := r.Rescan(); err != nil {
				logger.Warn().Err(err).Msg("model rescan failed")
			} else {
				logger.Debug().Msg("model registry rescanned")
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("models watcher error")
		case <-r.done:
			return
		}
	}
}

// Rescan rebuilds the index from disk and invalidates cached probes for
// models that disappeared.
func (r *Registry) Rescan() error {
	asr, asrManifests, err := scanKind(r.dir, kindASR)
	if err != nil {
		return err
	}
	mt, mtManifests, err := scanKind(r.dir, kindMT)
	if err != nil {
		return err
	}

	manifests := make(map[string]manifest, len(asrManifests)+len(mtManifests))
	for id, m := range asrManifests {
		manifests[kindASR+"/"+id] = m
	}
	for id, m := range mtManifests {
		manifests[kindMT+"/"+id] = m
	}

	r.mu.Lock()
	prev := r.manifests
	r.asr, r.mt, r.manifests = asr, mt, manifests
	r.mu.Unlock()

	for key := range prev {
		if _, still := manifests[key]; !still {
			r.cache.Delete("caps:" + key)
			r.cache.Delete("langs:" + key)
		}
	}
	return nil
}

// ASRModels lists installed speech models, sorted by id.
func (r *Registry) ASRModels() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, len(r.asr))
	copy(out, r.asr)
	return out
}

// MTModels lists installed translation models, sorted by id.
func (r *Registry) MTModels() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, len(r.mt))
	copy(out, r.mt)
	return out
}

// Capabilities probes an ASR model. Concurrent probes for the same model
// coalesce; results are cached.
func (r *Registry) Capabilities(name string) (Capabilities, error) {
	key := "caps:" + kindASR + "/" + name

	if v, ok := r.cache.Get(key); ok {
		if caps, ok := decodeCaps(v); ok {
			return caps, nil
		}
	}

	v, err, _ := r.sf.Do(key, func() (any, error) {
		r.mu.RLock()
		m := r.manifests[kindASR+"/"+name]
		_, installed := findInfo(r.asr, name)
		r.mu.RUnlock()
		if !installed {
			return Capabilities{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
		}
		caps := m.capabilities(name)
		r.cache.Set(key, caps, capsCacheTTL)
		return caps, nil
	})
	if err != nil {
		return Capabilities{}, err
	}
	return v.(Capabilities), nil
}

// MTLanguages returns the target languages a translation model accepts.
func (r *Registry) MTLanguages(modelID string) ([]string, error) {
	r.mu.RLock()
	m := r.manifests[kindMT+"/"+modelID]
	_, installed := findInfo(r.mt, modelID)
	r.mu.RUnlock()
	if !installed {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	langs := m.validLanguages()
	if len(langs) == 0 {
		langs = defaultMTLanguages
	}
	return langs, nil
}

func findInfo(list []Info, id string) (Info, bool) {
	for _, in := range list {
		if in.ID == id {
			return in, true
		}
	}
	return Info{}, false
}

// scanKind enumerates one kind directory. Artifacts define the model
// set; a manifest without an artifact is ignored.
func scanKind(root, kind string) ([]Info, map[string]manifest, error) {
	dir := filepath.Join(root, kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var infos []Info
	manifests := make(map[string]manifest)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		id := strings.TrimSuffix(name, ext)
		switch ext {
		case ".json":
			m, err := loadManifest(filepath.Join(dir, name))
			if err != nil {
				logger := log.WithComponent("models")
				logger.Warn().
					Err(err).
					Str(log.FieldPath, filepath.Join(dir, name)).
					Msg("manifest unreadable, skipped")
				continue
			}
			manifests[id] = m
		case ".bin", ".pt", ".onnx", ".gguf":
			infos = append(infos, Info{ID: id, Name: displayName(id), Path: filepath.Join(dir, name)})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, manifests, nil
}

func displayName(id string) string {
	return strings.ReplaceAll(strings.ReplaceAll(id, "--", "/"), "_", " ")
}
