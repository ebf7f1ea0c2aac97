// SPDX-License-Identifier: MIT

//go:build unix

package procgroup

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetMarksGroupLeader(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "true")
	Set(cmd)
	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestSignalGroupTerminatesChildren(t *testing.T) {
	// The leader forks a child; killing the group must take both down.
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & wait")
	Set(cmd)
	require.NoError(t, cmd.Start())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	require.NoError(t, SignalGroup(cmd.Process.Pid, SIGTERM))

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		_ = SignalGroup(cmd.Process.Pid, SIGKILL)
		t.Fatal("group did not terminate after SIGTERM")
	}
}

func TestSignalGroupIgnoresNonPositivePid(t *testing.T) {
	assert.NoError(t, SignalGroup(0, SIGTERM))
	assert.NoError(t, SignalGroup(-1, SIGTERM))
}
