// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveAppendRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.db")
	a, err := OpenArchive(path)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		c := Commit{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Seq:       uint64(i + 1),
			Type:      CommitTranscript,
			Data:      map[string]any{"text": "line"},
			SizeBytes: 100,
		}
		require.NoError(t, a.Append(ctx, "sid-1", c))
	}
	require.NoError(t, a.Append(ctx, "sid-2", Commit{
		ID: "other", Timestamp: base, Seq: 1,
		Type: CommitStatus, Data: map[string]any{"stage": "stopped"},
	}))

	got, err := a.Recent(ctx, "sid-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 3, got[0].Seq)
	assert.EqualValues(t, 2, got[1].Seq)
	assert.Equal(t, "line", got[0].Data["text"])
}

func TestArchiveReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.db")
	a, err := OpenArchive(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Append(ctx, "sid", Commit{
		ID: "c1", Timestamp: time.Now(), Seq: 1,
		Type: CommitTranscript, Data: map[string]any{"text": "x"},
	}))
	require.NoError(t, a.Close())

	a, err = OpenArchive(path)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	got, err := a.Recent(ctx, "sid", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
