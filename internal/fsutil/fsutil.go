// SPDX-License-Identifier: MIT

// Package fsutil confines request-supplied paths to the output root.
// The /out fileserver hands artifacts from session run dirs to clients;
// nothing outside the root may ever be resolvable.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfineRelPath joins root and relTarget and verifies the result stays
// physically under the resolved root. Symlinks are followed before the
// check, so a link escaping the root is rejected. relTarget must be
// relative.
func ConfineRelPath(root, relTarget string) (string, error) {
	// Backslashes have no business in request paths on this platform.
	if strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", relTarget)
	}

	cleanRel := filepath.Clean(relTarget)
	if filepath.IsAbs(cleanRel) {
		return "", fmt.Errorf("target path must be relative: %s", relTarget)
	}
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt: %s", relTarget)
	}

	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}
	return resolveAndCheck(realRoot, filepath.Join(realRoot, cleanRel))
}

// ConfineAbsPath verifies that the absolute targetAbs lies under root
// after symlink resolution.
func ConfineAbsPath(root, targetAbs string) (string, error) {
	if strings.Contains(targetAbs, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", targetAbs)
	}
	if !filepath.IsAbs(targetAbs) {
		return "", fmt.Errorf("target path must be absolute: %s", targetAbs)
	}

	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}
	return resolveAndCheck(realRoot, filepath.Clean(targetAbs))
}

// IsRegularFile returns an error unless path names an existing regular
// file. Directories and devices are not servable.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}

func resolveRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		realRoot = absRoot
	}
	return realRoot, nil
}

// resolveAndCheck resolves fullPath through symlinks and fails closed
// when the result leaves realRoot.
func resolveAndCheck(realRoot, fullPath string) (string, error) {
	realPath, err := filepath.EvalSymlinks(fullPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		// Not yet existing: resolve the parent so a symlinked ancestor
		// still cannot smuggle the path outside.
		dir := filepath.Dir(fullPath)
		realDir, derr := filepath.EvalSymlinks(dir)
		switch {
		case derr == nil:
			realPath = filepath.Join(realDir, filepath.Base(fullPath))
		case os.IsNotExist(derr):
			realPath = fullPath
		default:
			return "", fmt.Errorf("failed to resolve parent path: %w", derr)
		}
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil {
		return "", fmt.Errorf("rel computation failed: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %s", realPath)
	}
	return realPath, nil
}
