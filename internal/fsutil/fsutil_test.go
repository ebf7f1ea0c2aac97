// SPDX-License-Identifier: MIT

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineRelPathInsideRoot(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sess-1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "final_en.txt"), []byte("x"), 0o644))

	got, err := ConfineRelPath(root, "sess-1/final_en.txt")
	require.NoError(t, err)
	assert.Equal(t, "final_en.txt", filepath.Base(got))
}

func TestConfineRelPathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	for _, target := range []string{
		"../etc/passwd",
		"..",
		"a/../../b",
		"/etc/passwd",
		`a\..\b`,
	} {
		_, err := ConfineRelPath(root, target)
		assert.Error(t, err, "target %q must be rejected", target)
	}
}

func TestConfineRelPathInternalDotDotCollapses(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))

	got, err := ConfineRelPath(root, "a/../b")
	require.NoError(t, err)
	assert.Equal(t, "b", filepath.Base(got))
}

func TestConfineRelPathRejectsEscapingSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "link")))

	_, err := ConfineRelPath(root, "link")
	require.Error(t, err)
}

func TestConfineAbsPath(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "x.txt")
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o644))

	got, err := ConfineAbsPath(root, inside)
	require.NoError(t, err)
	assert.Equal(t, "x.txt", filepath.Base(got))

	_, err = ConfineAbsPath(root, "/etc/passwd")
	require.Error(t, err)

	_, err = ConfineAbsPath(root, "relative/path")
	require.Error(t, err)
}

func TestIsRegularFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.NoError(t, IsRegularFile(file))
	assert.Error(t, IsRegularFile(root))
	assert.Error(t, IsRegularFile(filepath.Join(root, "missing")))
}
