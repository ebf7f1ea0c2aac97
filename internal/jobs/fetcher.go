// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/livecap/internal/log"
)

const defaultHubBaseURL = "https://huggingface.co"

// HTTPFetcher downloads model artifacts over HTTP with exponential
// backoff retries. The artifact lands in destDir under a name derived
// from the repo id, written atomically.
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
	retries int
}

// NewHTTPFetcher builds a fetcher against baseURL (default Hugging Face
// hub) with the given retry count (default 3).
func NewHTTPFetcher(baseURL string, retries int) *HTTPFetcher {
	if baseURL == "" {
		baseURL = defaultHubBaseURL
	}
	if retries <= 0 {
		retries = 3
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: 30 * time.Minute},
		baseURL: strings.TrimRight(baseURL, "/"),
		retries: retries,
	}
}

// Fetch retrieves the artifact, retrying transient failures. Progress
// percentages are computed from Content-Length when the server sends one.
func (f *HTTPFetcher) Fetch(ctx context.Context, repoID string, typ Type, destDir string, progress func(pct int)) error {
	artifactURL := fmt.Sprintf("%s/%s/resolve/main/model.bin", f.baseURL, escapeRepoID(repoID))
	dest := filepath.Join(destDir, string(typ), artifactName(repoID))

	// #nosec G301 -- model dirs are served read-only.
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt*500) * time.Millisecond
			logger := log.WithComponent("jobs")
			logger.Debug().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Str("repo_id", repoID).
				Msg("retrying download")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := f.fetchOnce(ctx, artifactURL, dest, progress)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("download %s: %w", repoID, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, artifactURL, dest string, progress func(pct int)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	pf, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer func() { _ = pf.Cleanup() }()

	var written int64
	buf := make([]byte, 256*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := pf.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if resp.ContentLength > 0 {
				progress(int(written * 100 / resp.ContentLength))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	return pf.CloseAtomicallyReplace()
}

// escapeRepoID keeps the org/name slash intact while escaping everything
// else for the URL path.
func escapeRepoID(repoID string) string {
	parts := strings.Split(repoID, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// artifactName flattens "org/name" into a single path element.
func artifactName(repoID string) string {
	return strings.ReplaceAll(repoID, "/", "--") + ".bin"
}
