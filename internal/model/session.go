// SPDX-License-Identifier: MIT

// Package model holds the session domain types shared between the
// supervisor, the worker runner and the HTTP surface.
package model

import "fmt"

// Device is the compute preference for a session's inference pipeline.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCUDA Device = "cuda"
	DeviceCPU  Device = "cpu"
)

// SaveAudioMode selects the audio artifact the worker persists.
type SaveAudioMode string

const (
	SaveAudioOff  SaveAudioMode = "off"
	SaveAudioWAV  SaveAudioMode = "wav"
	SaveAudioFLAC SaveAudioMode = "flac"
)

// SessionConfig is immutable after session creation.
type SessionConfig struct {
	Name           string        `json:"name"`
	ASRModel       string        `json:"asr_model"`
	MTEnabled      bool          `json:"mt_enabled"`
	MTModel        string        `json:"mt_model,omitempty"`
	DestLang       string        `json:"dest_lang,omitempty"`
	Device         Device        `json:"device"`
	VAD            bool          `json:"vad"`
	Beams          int           `json:"beams"`
	PauseFlushSec  float64       `json:"pause_flush_sec"`
	SegmentMaxSec  float64       `json:"segment_max_sec"`
	PartialWordCap int           `json:"partial_word_cap"`
	SaveAudio      SaveAudioMode `json:"save_audio"`
}

// Normalize fills enum zero values with their defaults.
func (c *SessionConfig) Normalize() {
	if c.Device == "" {
		c.Device = DeviceAuto
	}
	if c.SaveAudio == "" {
		c.SaveAudio = SaveAudioOff
	}
}

// Validate rejects configurations the worker cannot run.
func (c SessionConfig) Validate() error {
	switch c.Device {
	case DeviceAuto, DeviceCUDA, DeviceCPU:
	default:
		return fmt.Errorf("invalid device %q", c.Device)
	}
	switch c.SaveAudio {
	case SaveAudioOff, SaveAudioWAV, SaveAudioFLAC:
	default:
		return fmt.Errorf("invalid save_audio mode %q", c.SaveAudio)
	}
	if c.ASRModel == "" {
		return fmt.Errorf("asr_model is required")
	}
	if c.Beams < 0 {
		return fmt.Errorf("beams must be non-negative, got %d", c.Beams)
	}
	if c.PauseFlushSec < 0 || c.SegmentMaxSec < 0 {
		return fmt.Errorf("pause_flush_sec and segment_max_sec must be non-negative")
	}
	if c.PartialWordCap < 0 {
		return fmt.Errorf("partial_word_cap must be non-negative, got %d", c.PartialWordCap)
	}
	if c.MTEnabled && c.DestLang == "" {
		return fmt.Errorf("dest_lang is required when mt is enabled")
	}
	return nil
}
