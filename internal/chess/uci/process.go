package uci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const defaultExitGrace = 5 * time.Second

type ProcessOptions struct {
	// SearchTimeout bounds a single search; zero disables it.
	SearchTimeout time.Duration
	// ExitGrace is how long Close waits after quit before killing the engine.
	ExitGrace time.Duration
	Stderr    io.Writer
}

// Process is a long-lived engine child process and the client speaking to it.
type Process struct {
	*Client

	cmd   *exec.Cmd
	stdin io.WriteCloser
	grace time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Start spawns the engine at binaryPath. The caller owns the returned process
// and must Close it on every exit path.
func Start(ctx context.Context, binaryPath string, opt ProcessOptions) (*Process, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = opt.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	grace := opt.ExitGrace
	if grace <= 0 {
		grace = defaultExitGrace
	}
	return &Process{
		Client: NewClient(NewTransport(stdoutPipe, stdin), opt.SearchTimeout),
		cmd:    cmd,
		stdin:  stdin,
		grace:  grace,
	}, nil
}

func (p *Process) Pid() int {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Close sends quit, closes stdin and waits for the engine to exit. The engine
// is killed if it is still running after the grace period. Safe to call twice.
func (p *Process) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		p.closeErr = p.shutdown()
	})
	return p.closeErr
}

func (p *Process) shutdown() error {
	var errs []error
	if err := p.Quit(); err != nil {
		errs = append(errs, err)
	}
	if p.stdin != nil {
		_ = p.stdin.Close()
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			errs = append(errs, fmt.Errorf("wait engine: %w", err))
		}
	case <-time.After(p.grace):
		_ = p.cmd.Process.Kill()
		<-done
		errs = append(errs, fmt.Errorf("engine did not exit within %s after quit; killed", p.grace))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
