// SPDX-License-Identifier: MIT

// Package procgroup places worker children in their own process group
// so termination reaches helpers the worker forks (audio capture,
// codec subprocesses), not just the leader.
package procgroup

import (
	"os/exec"
)

// Set configures cmd to start as a process group leader. Must be called
// before the command starts for SignalGroup to cover its children.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// SignalGroup delivers sig to pid's whole process group. A group that
// is already gone is not an error.
func SignalGroup(pid int, sig Signal) error {
	if pid <= 0 {
		return nil
	}
	return signalGroup(pid, sig)
}
