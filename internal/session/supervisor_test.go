// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/livecap/internal/events"
	"github.com/ManuGH/livecap/internal/hub"
	"github.com/ManuGH/livecap/internal/model"
)

// captureConn implements hub.Conn, recording decoded envelopes.
type captureConn struct {
	mu     sync.Mutex
	frames []map[string]any
}

func (c *captureConn) WriteMessage(messageType int, data []byte) error {
	if messageType != 1 {
		return nil
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
	return nil
}

func (c *captureConn) SetWriteDeadline(time.Time) error { return nil }
func (c *captureConn) Close() error                     { return nil }

func (c *captureConn) snapshot() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *captureConn) ofType(typ string) []map[string]any {
	var out []map[string]any
	for _, f := range c.snapshot() {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

func fakeWorker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newTestSupervisor(t *testing.T, workerBody string, maxCUDA int) (*Supervisor, *hub.Hub) {
	t.Helper()
	h := hub.New()
	sup := New(Options{
		OutRoot:         t.TempDir(),
		WorkerBin:       fakeWorker(t, workerBody),
		MaxCUDASessions: maxCUDA,
		PumpInterval:    10 * time.Millisecond,
		MeterInterval:   20 * time.Millisecond,
	}, h)

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx)
	t.Cleanup(func() {
		sup.Shutdown(context.Background())
		cancel()
		h.Close()
	})
	return sup, h
}

const idleWorker = `trap 'exit 0' TERM
echo "warming up"
while true; do sleep 0.05; done
`

func cpuConfig() model.SessionConfig {
	return model.SessionConfig{ASRModel: "base.en", Device: model.DeviceCPU}
}

func cudaConfig() model.SessionConfig {
	return model.SessionConfig{ASRModel: "base.en", Device: model.DeviceCUDA}
}

func TestCUDAAdmission(t *testing.T) {
	sup, _ := newTestSupervisor(t, idleWorker, 1)

	first, err := sup.Create(context.Background(), cudaConfig())
	require.NoError(t, err)

	_, err = sup.Create(context.Background(), cudaConfig())
	require.ErrorIs(t, err, ErrGPUBusy)
	assert.Equal(t, "GPU busy: maximum concurrent CUDA sessions reached", err.Error())

	// CPU sessions are not slot-limited.
	_, err = sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	require.NoError(t, sup.Stop(context.Background(), first.ID))

	_, err = sup.Create(context.Background(), cudaConfig())
	require.NoError(t, err)
}

func TestCreateInvalidConfigFailsSynchronously(t *testing.T) {
	sup, _ := newTestSupervisor(t, idleWorker, 1)
	cfg := cpuConfig()
	cfg.Device = "tpu"
	_, err := sup.Create(context.Background(), cfg)
	require.Error(t, err)
	assert.Empty(t, sup.Sessions())
}

func TestSpawnFailureNoStatePublished(t *testing.T) {
	h := hub.New()
	sup := New(Options{
		OutRoot:   t.TempDir(),
		WorkerBin: "/nonexistent/worker",
	}, h)
	_, err := sup.Create(context.Background(), cpuConfig())
	require.Error(t, err)
	assert.Empty(t, sup.Sessions())
}

func TestStopUnknownSession(t *testing.T) {
	sup, _ := newTestSupervisor(t, idleWorker, 1)
	err := sup.Stop(context.Background(), "no-such-id")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEventPipelineOrderingAndSeq(t *testing.T) {
	body := `echo "EN ≫ hello"
echo "EN(final): hello world"
echo "Ready — start speaking now"
trap 'exit 0' TERM
while true; do sleep 0.05; done
`
	sup, h := newTestSupervisor(t, body, 1)

	sess, err := sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	conn := &captureConn{}
	sub := h.Subscribe(sess.ID, conn)
	defer h.Unsubscribe(sub)

	require.Eventually(t, func() bool {
		return sess.State() == model.StateOperational
	}, 5*time.Second, 10*time.Millisecond)

	// Replay carries the full ordered history regardless of when the
	// subscriber attached.
	envs := sess.Replay().GetAfter(0)
	require.GreaterOrEqual(t, len(envs), 4)

	assert.Equal(t, events.TypeStatus, envs[0].Type) // initializing
	assert.Equal(t, "initializing", envs[0].Payload["stage"])
	assert.Equal(t, events.TypePartialEN, envs[1].Type)
	assert.Equal(t, "hello", envs[1].Payload["text"])
	assert.Equal(t, events.TypeFinalEN, envs[2].Type)
	assert.Equal(t, "hello world", envs[2].Payload["text"])
	assert.Equal(t, events.TypeStatus, envs[3].Type)
	assert.Equal(t, "operational", envs[3].Payload["stage"])

	for i, env := range envs {
		assert.EqualValues(t, i+1, env.Seq, "seq must be contiguous from 1")
	}
}

func TestFinalsRecordedAsCommits(t *testing.T) {
	body := `echo "EN(final): first line"
echo "ZH: 第一行"
trap 'exit 0' TERM
while true; do sleep 0.05; done
`
	sup, _ := newTestSupervisor(t, body, 1)
	sess, err := sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sess.Store().Stats().TotalCommits >= 3 // initializing + 2 finals
	}, 5*time.Second, 10*time.Millisecond)

	got := sess.Store().GetCommits(0, "", time.Time{})
	types := map[string]bool{}
	for _, c := range got {
		types[string(c.Type)] = true
	}
	assert.True(t, types["transcript"])
	assert.True(t, types["translation"])
	assert.True(t, types["status"])
}

func TestTranscriptFilesMaterialized(t *testing.T) {
	body := `echo "EN ≫ drafting"
echo "EN(final): hello world"
trap 'exit 0' TERM
while true; do sleep 0.05; done
`
	sup, _ := newTestSupervisor(t, body, 1)
	sess, err := sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(sess.RunDir, "final_en.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(filepath.Join(sess.RunDir, "final_en.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(data))

	vtt, err := os.ReadFile(filepath.Join(sess.RunDir, "captions.vtt"))
	require.NoError(t, err)
	assert.Contains(t, string(vtt), "WEBVTT")
}

func TestWorkerCrashPublishesFailed(t *testing.T) {
	body := `echo "about to die"
exit 3
`
	sup, h := newTestSupervisor(t, body, 1)
	sess, err := sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	conn := &captureConn{}
	sub := h.Subscribe(sess.ID, conn)
	defer h.Unsubscribe(sub)

	require.Eventually(t, func() bool {
		for _, f := range conn.ofType("status") {
			if f["stage"] == "failed" {
				return true
			}
		}
		// The session may have failed before we subscribed; check replay.
		for _, env := range sess.Replay().GetAfter(0) {
			if env.Payload["stage"] == "failed" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, model.StateFailed, sess.State())
	_, registered := sup.Get(sess.ID)
	assert.False(t, registered)
}

func TestCrashReleasesAdmissionSlot(t *testing.T) {
	body := `exit 1
`
	sup, _ := newTestSupervisor(t, body, 1)
	sess, err := sup.Create(context.Background(), cudaConfig())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := sup.Get(sess.ID)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)

	_, err = sup.Create(context.Background(), cudaConfig())
	require.NoError(t, err)
}

func TestStopEmitsStoppedStatus(t *testing.T) {
	sup, _ := newTestSupervisor(t, idleWorker, 1)
	sess, err := sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	require.NoError(t, sup.Stop(context.Background(), sess.ID))
	assert.Equal(t, model.StateStopped, sess.State())

	envs := sess.Replay().GetAfter(0)
	last := envs[len(envs)-1]
	assert.Equal(t, events.TypeStatus, last.Type)
	assert.Equal(t, "stopped", last.Payload["stage"])
}

func TestVUMeterEmitsForOperationalSessions(t *testing.T) {
	body := `echo "Ready — start speaking now"
trap 'exit 0' TERM
while true; do sleep 0.05; done
`
	sup, h := newTestSupervisor(t, body, 1)
	sess, err := sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	conn := &captureConn{}
	sub := h.Subscribe(sess.ID, conn)
	defer h.Unsubscribe(sub)

	require.Eventually(t, func() bool {
		return len(conn.ofType("vu")) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	vu := conn.ofType("vu")[0]
	rms, ok := vu["rms"].(float64)
	require.True(t, ok)
	peak := vu["peak"].(float64)
	assert.Greater(t, rms, 0.0)
	assert.GreaterOrEqual(t, peak, rms)
}

func TestRetentionSkipCoversActiveRunDirs(t *testing.T) {
	sup, _ := newTestSupervisor(t, idleWorker, 1)
	sess, err := sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	skip := sup.ActiveRunDirs()
	assert.True(t, skip(filepath.Join(sess.RunDir, "session.wav")))
	assert.False(t, skip(filepath.Join(filepath.Dir(sess.RunDir), "gone-session", "x.txt")))

	require.NoError(t, sup.Stop(context.Background(), sess.ID))
	assert.False(t, skip(filepath.Join(sess.RunDir, "session.wav")))
}

func TestCrashMidlineDoesNotLoseBufferedLines(t *testing.T) {
	body := `echo "EN(final): last words"
exit 1
`
	sup, _ := newTestSupervisor(t, body, 1)
	sess, err := sup.Create(context.Background(), cpuConfig())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, env := range sess.Replay().GetAfter(0) {
			if env.Type == events.TypeFinalEN {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}
