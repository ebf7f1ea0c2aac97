// SPDX-License-Identifier: MIT

package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/livecap/internal/cache"
)

func writeModel(t *testing.T, root, kind, id string, manifest string) {
	t.Helper()
	dir := filepath.Join(root, kind)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".bin"), []byte("weights"), 0o644))
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(manifest), 0o644))
	}
}

func TestScanListsModelsSorted(t *testing.T) {
	root := t.TempDir()
	writeModel(t, root, "asr", "small", "")
	writeModel(t, root, "asr", "base.en", "")
	writeModel(t, root, "mt", "nllb-200", "")

	r, err := New(root, cache.NewMemory(0))
	require.NoError(t, err)
	defer r.Close()

	asr := r.ASRModels()
	require.Len(t, asr, 2)
	assert.Equal(t, "base.en", asr[0].ID)
	assert.Equal(t, "small", asr[1].ID)
	assert.NotEmpty(t, asr[0].Path)

	mt := r.MTModels()
	require.Len(t, mt, 1)
	assert.Equal(t, "nllb-200", mt[0].ID)
}

func TestEmptyModelsDir(t *testing.T) {
	r, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	defer r.Close()
	assert.Empty(t, r.ASRModels())
	assert.Empty(t, r.MTModels())
}

func TestCapabilitiesEnglishOnlyHeuristic(t *testing.T) {
	root := t.TempDir()
	writeModel(t, root, "asr", "base.en", "")

	r, err := New(root, cache.NewMemory(0))
	require.NoError(t, err)
	defer r.Close()

	caps, err := r.Capabilities("base.en")
	require.NoError(t, err)
	assert.Equal(t, "asr", caps.Kind)
	assert.False(t, caps.SupportsAuto)
	assert.Equal(t, []string{"en"}, caps.Languages)
	assert.Equal(t, "<|en|>", caps.Tokens["en"])
}

func TestCapabilitiesFromManifest(t *testing.T) {
	root := t.TempDir()
	writeModel(t, root, "asr", "large-v3", `{
		"supports_auto": true,
		"languages": ["en", "zh", "not-a-lang!!", "en"],
		"tokens": {"zh": "<|zh|>"}
	}`)

	r, err := New(root, cache.NewMemory(0))
	require.NoError(t, err)
	defer r.Close()

	caps, err := r.Capabilities("large-v3")
	require.NoError(t, err)
	assert.True(t, caps.SupportsAuto)
	assert.Equal(t, []string{"en", "zh"}, caps.Languages)
	assert.Equal(t, "<|zh|>", caps.Tokens["zh"])
	assert.Equal(t, "<|en|>", caps.Tokens["en"])
}

func TestCapabilitiesUnknownModel(t *testing.T) {
	r, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Capabilities("ghost")
	require.ErrorIs(t, err, ErrModelNotFound)
}

func TestCapabilitiesCached(t *testing.T) {
	root := t.TempDir()
	writeModel(t, root, "asr", "base.en", "")

	c := cache.NewMemory(0)
	r, err := New(root, c)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Capabilities("base.en")
	require.NoError(t, err)
	_, err = r.Capabilities("base.en")
	require.NoError(t, err)

	st := c.Stats()
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 1, st.Sets)
}

func TestMTLanguages(t *testing.T) {
	root := t.TempDir()
	writeModel(t, root, "mt", "nllb-200", `{"languages": ["de", "zh", "fr"]}`)
	writeModel(t, root, "mt", "opus", "")

	r, err := New(root, nil)
	require.NoError(t, err)
	defer r.Close()

	langs, err := r.MTLanguages("nllb-200")
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "fr", "zh"}, langs)

	langs, err = r.MTLanguages("opus")
	require.NoError(t, err)
	assert.Equal(t, defaultMTLanguages, langs)

	_, err = r.MTLanguages("ghost")
	require.ErrorIs(t, err, ErrModelNotFound)
}

func TestWatcherPicksUpNewModel(t *testing.T) {
	root := t.TempDir()
	r, err := New(root, cache.NewMemory(0))
	require.NoError(t, err)
	require.NoError(t, r.Watch())
	defer r.Close()

	writeModel(t, root, "asr", "tiny", "")

	require.Eventually(t, func() bool {
		return len(r.ASRModels()) == 1
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, "tiny", r.ASRModels()[0].ID)
}

func TestRescanDropsRemovedModelFromCache(t *testing.T) {
	root := t.TempDir()
	writeModel(t, root, "asr", "base.en", `{"languages": ["en"]}`)

	c := cache.NewMemory(0)
	r, err := New(root, c)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Capabilities("base.en")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "asr", "base.en.bin")))
	require.NoError(t, os.Remove(filepath.Join(root, "asr", "base.en.json")))
	require.NoError(t, r.Rescan())

	_, err = r.Capabilities("base.en")
	require.ErrorIs(t, err, ErrModelNotFound)
}
