// SPDX-License-Identifier: MIT

package worker

import (
	"fmt"
	"strconv"

	"github.com/ManuGH/livecap/internal/model"
)

// Environment variable names of the worker contract. All values are
// strings; unset values fall back to worker defaults.
const (
	EnvASRModel       = "LIVECAP_ASR_MODEL"
	EnvMTModel        = "LIVECAP_MT_MODEL"
	EnvDestLang       = "LIVECAP_DEST_LANG"
	EnvDevice         = "LIVECAP_DEVICE"
	EnvVAD            = "LIVECAP_VAD"
	EnvBeams          = "LIVECAP_BEAMS"
	EnvPauseFlushSec  = "LIVECAP_PAUSE_FLUSH_SEC"
	EnvSegmentMaxSec  = "LIVECAP_SEGMENT_MAX_SEC"
	EnvPartialWordCap = "LIVECAP_PARTIAL_WORD_CAP"
	EnvOutDir         = "LIVECAP_OUT_DIR"
	EnvSaveAudio      = "LIVECAP_SAVE_AUDIO"
)

// EnvFor freezes a session config into the worker's environment. Only
// set fields are exported so the worker's own defaults apply elsewhere.
func EnvFor(cfg model.SessionConfig, runDir string) []string {
	env := []string{
		fmt.Sprintf("%s=%s", EnvASRModel, cfg.ASRModel),
		fmt.Sprintf("%s=%s", EnvDevice, cfg.Device),
		fmt.Sprintf("%s=%s", EnvVAD, boolFlag(cfg.VAD)),
		fmt.Sprintf("%s=%s", EnvOutDir, runDir),
		fmt.Sprintf("%s=%s", EnvSaveAudio, cfg.SaveAudio),
	}
	if cfg.MTEnabled && cfg.MTModel != "" {
		env = append(env, fmt.Sprintf("%s=%s", EnvMTModel, cfg.MTModel))
	}
	if cfg.DestLang != "" {
		env = append(env, fmt.Sprintf("%s=%s", EnvDestLang, cfg.DestLang))
	}
	if cfg.Beams > 0 {
		env = append(env, fmt.Sprintf("%s=%d", EnvBeams, cfg.Beams))
	}
	if cfg.PauseFlushSec > 0 {
		env = append(env, fmt.Sprintf("%s=%s", EnvPauseFlushSec, strconv.FormatFloat(cfg.PauseFlushSec, 'f', -1, 64)))
	}
	if cfg.SegmentMaxSec > 0 {
		env = append(env, fmt.Sprintf("%s=%s", EnvSegmentMaxSec, strconv.FormatFloat(cfg.SegmentMaxSec, 'f', -1, 64)))
	}
	if cfg.PartialWordCap > 0 {
		env = append(env, fmt.Sprintf("%s=%d", EnvPartialWordCap, cfg.PartialWordCap))
	}
	return env
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
