// SPDX-License-Identifier: MIT

package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestPartialFileHasExactlyOneLine(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSink(dir, 10)
	require.NoError(t, err)

	require.NoError(t, s.WritePartial("en", "draft one"))
	require.NoError(t, s.WritePartial("en", "draft two"))

	got := readFile(t, dir, PartialENFile)
	assert.Equal(t, "draft two\n", got)
}

func TestRollingFinalKeepsLastN(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSink(dir, 3)
	require.NoError(t, err)

	for i, text := range []string{"one", "two", "three", "four", "five"} {
		start := time.Duration(i) * time.Second
		require.NoError(t, s.AppendFinal("en", text, start, start+time.Second))
	}

	got := readFile(t, dir, FinalENFile)
	assert.Equal(t, "three\nfour\nfive\n", got)
	assert.True(t, strings.HasSuffix(got, "\n"), "trailing newline required")
}

func TestSubtitleFileWellFormed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSink(dir, 10)
	require.NoError(t, err)

	require.NoError(t, s.AppendFinal("en", "hello", 0, 2*time.Second))
	require.NoError(t, s.AppendFinal("en", "world", time.Second, 3*time.Second))
	require.NoError(t, s.AppendFinal("zh", "你好", 0, time.Second))

	cues := s.Cues()
	require.Len(t, cues, 2, "zh finals do not produce cues")
	assert.LessOrEqual(t, cues[0].End, cues[1].Start)

	got := readFile(t, dir, SubtitleFile)
	assert.True(t, strings.HasPrefix(got, "WEBVTT"))
	assert.NotContains(t, got, "你好")
}
