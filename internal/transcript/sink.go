// SPDX-License-Identifier: MIT

// Package transcript materializes a session's transcript stream into its
// run directory: a rolling final text file bounded to the last N lines, a
// one-line partial draft file, and a WebVTT subtitle file. All files are
// replaced atomically.
package transcript

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// File names produced inside a session run dir.
const (
	FinalENFile   = "final_en.txt"
	FinalZHFile   = "final_zh.txt"
	PartialENFile = "partial_en.txt"
	PartialZHFile = "partial_zh.txt"
	SubtitleFile  = "captions.vtt"
)

// Sink owns the transcript files of one session run dir.
type Sink struct {
	mu       sync.Mutex
	dir      string
	maxLines int

	finalEN []string
	finalZH []string
	cues    []Cue
}

// NewSink creates a sink writing into dir, keeping the last maxLines
// lines per rolling final file.
func NewSink(dir string, maxLines int) (*Sink, error) {
	if maxLines <= 0 {
		return nil, fmt.Errorf("transcript: maxLines must be positive, got %d", maxLines)
	}
	return &Sink{dir: dir, maxLines: maxLines}, nil
}

// WritePartial replaces the single-line partial draft file for the lang.
func (s *Sink) WritePartial(lang, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := PartialENFile
	if lang == "zh" {
		name = PartialZHFile
	}
	return s.writeFile(name, text+"\n")
}

// AppendFinal appends a finalized line to the rolling final file for the
// lang, trimming to the last maxLines lines, and extends the subtitle
// track for English finals.
func (s *Sink) AppendFinal(lang, text string, start, end time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := &s.finalEN
	name := FinalENFile
	if lang == "zh" {
		lines = &s.finalZH
		name = FinalZHFile
	}

	*lines = append(*lines, text)
	if len(*lines) > s.maxLines {
		*lines = (*lines)[len(*lines)-s.maxLines:]
	}
	if err := s.writeFile(name, strings.Join(*lines, "\n")+"\n"); err != nil {
		return err
	}

	if lang == "en" {
		s.cues = AppendCue(s.cues, Cue{Start: start, End: end, Text: text})
		return s.writeFile(SubtitleFile, FormatVTT(s.cues))
	}
	return nil
}

// Cues returns a copy of the subtitle cues accumulated so far.
func (s *Sink) Cues() []Cue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cue, len(s.cues))
	copy(out, s.cues)
	return out
}

func (s *Sink) writeFile(name, content string) error {
	path := filepath.Join(s.dir, name)
	if err := renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("transcript: write %s: %w", path, err)
	}
	return nil
}
