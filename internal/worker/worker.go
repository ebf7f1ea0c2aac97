// SPDX-License-Identifier: MIT

// Package worker runs one inference child process per session and turns
// its line-oriented stdout protocol into typed events.
package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ManuGH/livecap/internal/log"
	"github.com/ManuGH/livecap/internal/model"
	"github.com/ManuGH/livecap/internal/procgroup"
	"github.com/ManuGH/livecap/internal/queue"
)

const (
	// InboxCapacity bounds the raw line inbox between the reader
	// goroutine and the supervisor pump.
	InboxCapacity = 1000

	// stopGrace is how long Stop waits after SIGTERM before SIGKILL.
	stopGrace = 3 * time.Second
)

// Process owns a child worker, the goroutine reading its merged
// stdout/stderr, and the bounded line inbox. Stopping the process
// terminates the child and joins the reader.
type Process struct {
	cmd   *exec.Cmd
	inbox *queue.Queue[string]

	done     chan struct{} // closed when the child has been reaped
	readerWG sync.WaitGroup

	mu      sync.Mutex
	exitErr error
	stopped bool
}

// Spawn starts the worker binary with the environment frozen from cfg.
// The child inherits the parent environment plus the session overrides.
// Spawn failures are synchronous; no session state is published.
func Spawn(ctx context.Context, bin string, cfg model.SessionConfig, runDir string) (*Process, error) {
	inbox, err := queue.New[string]("worker-inbox", InboxCapacity)
	if err != nil {
		return nil, err
	}

	// #nosec G204 -- bin comes from operator configuration, not request input.
	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(), EnvFor(cfg, runDir)...)
	cmd.Dir = runDir
	// Group leadership so Stop reaches helpers the worker forks.
	procgroup.Set(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("worker: pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("worker: spawn %s: %w", bin, err)
	}
	// The parent's write end must be closed so the reader sees EOF once
	// the child exits.
	_ = pw.Close()

	p := &Process{
		cmd:   cmd,
		inbox: inbox,
		done:  make(chan struct{}),
	}

	p.readerWG.Add(1)
	go p.readLines(ctx, pr)

	go p.reap()

	return p, nil
}

// readLines pushes each decoded line into the bounded inbox. It exits
// when the process has exited and the stream is drained.
func (p *Process) readLines(ctx context.Context, r *os.File) {
	defer p.readerWG.Done()
	defer func() { _ = r.Close() }()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.inbox.Put(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		logger := log.WithComponentFromContext(ctx, "worker")
		logger.Debug().
			Err(err).
			Msg("stdout reader stopped with error")
	}
}

func (p *Process) reap() {
	err := p.cmd.Wait()
	p.readerWG.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	close(p.done)
}

// Inbox returns the bounded line inbox. The pump drains it.
func (p *Process) Inbox() *queue.Queue[string] { return p.inbox }

// Done is closed once the child has been reaped and the reader joined.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitErr returns the child's exit error, valid after Done is closed.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Pid returns the child process id.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Stop requests graceful termination, waits up to the grace period and
// force kills if the child is still alive. Safe to call more than once.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	alreadyStopped := p.stopped
	p.stopped = true
	p.mu.Unlock()

	if alreadyStopped {
		<-p.done
		return nil
	}

	logger := log.WithComponentFromContext(ctx, "worker")

	_ = procgroup.SignalGroup(p.Pid(), procgroup.SIGTERM)

	select {
	case <-p.done:
		return nil
	case <-time.After(stopGrace):
	case <-ctx.Done():
	}

	logger.Warn().Int("pid", p.Pid()).Msg("worker did not exit in time, killing")
	_ = procgroup.SignalGroup(p.Pid(), procgroup.SIGKILL)
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.done
	return nil
}

// Stopped reports whether Stop was requested. The supervisor uses this to
// distinguish a requested shutdown from a mid-life crash.
func (p *Process) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
