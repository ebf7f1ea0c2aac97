// SPDX-License-Identifier: MIT

//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
)

// Signal is the platform signal type.
type Signal = syscall.Signal

const (
	SIGTERM = syscall.SIGTERM
	SIGKILL = syscall.SIGKILL
)

func set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// signalGroup targets -pid, the group set up at spawn. Falls back to
// the single pid when the group signal is not permitted.
func signalGroup(pid int, sig Signal) error {
	err := syscall.Kill(-pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if errors.Is(err, syscall.EPERM) {
		if err := syscall.Kill(pid, sig); err == nil || errors.Is(err, syscall.ESRCH) {
			return nil
		}
	}
	return err
}
