// SPDX-License-Identifier: MIT

package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/livecap/internal/model"
)

func TestEnvForFullConfig(t *testing.T) {
	cfg := model.SessionConfig{
		Name:           "desk",
		ASRModel:       "base.en",
		MTEnabled:      true,
		MTModel:        "nllb-200",
		DestLang:       "zh-Hans",
		Device:         model.DeviceCUDA,
		VAD:            true,
		Beams:          5,
		PauseFlushSec:  0.8,
		SegmentMaxSec:  12,
		PartialWordCap: 40,
		SaveAudio:      model.SaveAudioFLAC,
	}

	env := EnvFor(cfg, "/out/sid")
	assert.Contains(t, env, "LIVECAP_ASR_MODEL=base.en")
	assert.Contains(t, env, "LIVECAP_MT_MODEL=nllb-200")
	assert.Contains(t, env, "LIVECAP_DEST_LANG=zh-Hans")
	assert.Contains(t, env, "LIVECAP_DEVICE=cuda")
	assert.Contains(t, env, "LIVECAP_VAD=1")
	assert.Contains(t, env, "LIVECAP_BEAMS=5")
	assert.Contains(t, env, "LIVECAP_PAUSE_FLUSH_SEC=0.8")
	assert.Contains(t, env, "LIVECAP_SEGMENT_MAX_SEC=12")
	assert.Contains(t, env, "LIVECAP_PARTIAL_WORD_CAP=40")
	assert.Contains(t, env, "LIVECAP_OUT_DIR=/out/sid")
	assert.Contains(t, env, "LIVECAP_SAVE_AUDIO=flac")
}

func TestEnvForUnsetValuesOmitted(t *testing.T) {
	cfg := model.SessionConfig{ASRModel: "base.en", Device: model.DeviceAuto, SaveAudio: model.SaveAudioOff}
	env := EnvFor(cfg, "/out/sid")

	assert.Contains(t, env, "LIVECAP_VAD=0")
	for _, kv := range env {
		assert.NotContains(t, kv, "LIVECAP_BEAMS=")
		assert.NotContains(t, kv, "LIVECAP_MT_MODEL=")
		assert.NotContains(t, kv, "LIVECAP_PARTIAL_WORD_CAP=")
	}
}
