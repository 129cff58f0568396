// Package agent runs the external agent CLI and turns its output into a
// spoken reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

const (
	// DefaultCommand is the agent executable looked up on PATH.
	DefaultCommand = "clawdbot"

	defaultMaxStdout = 1 << 20
	defaultMaxStderr = 64 << 10
	defaultWaitDelay = 2 * time.Second

	// stderrLogLimit bounds the stderr excerpt kept on ExecutionError.
	stderrLogLimit = 512
)

// Request is one agent invocation.
type Request struct {
	Message        string
	AgentID        string
	TimeoutSeconds int
}

// Outcome is what the process left behind.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Invoker starts the agent CLI as a subprocess.
type Invoker struct {
	Command string

	// MaxStdout and MaxStderr cap captured output; excess is discarded.
	MaxStdout int
	MaxStderr int

	// WaitDelay bounds how long output pipes may stay open after the
	// process is killed.
	WaitDelay time.Duration
}

// NewInvoker creates an invoker for command with default capture limits.
func NewInvoker(command string) *Invoker {
	if command == "" {
		command = DefaultCommand
	}
	return &Invoker{
		Command:   command,
		MaxStdout: defaultMaxStdout,
		MaxStderr: defaultMaxStderr,
		WaitDelay: defaultWaitDelay,
	}
}

// Args builds the argument vector. The message is always a single element
// following --message and is never interpreted by a shell.
func Args(req Request) []string {
	return []string{
		"agent",
		"--agent", req.AgentID,
		"--message", req.Message,
		"--json",
		"--timeout", strconv.Itoa(req.TimeoutSeconds),
	}
}

// Invoke runs the agent and waits for it to exit. The process is killed
// when ctx ends or the request timeout elapses, whichever comes first.
func (i *Invoker) Invoke(ctx context.Context, req Request) (*Outcome, error) {
	runCtx := ctx
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout := &cappedBuffer{limit: i.MaxStdout}
	stderr := &cappedBuffer{limit: i.MaxStderr}

	cmd := exec.CommandContext(runCtx, i.Command, Args(req)...)
	cmd.Env = os.Environ()
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = i.WaitDelay
	killProcessGroupOnCancel(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: i.Command, Err: err}
	}
	waitErr := cmd.Wait()

	outcome := &Outcome{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr == nil {
		return outcome, nil
	}

	if runCtx.Err() != nil {
		if ctx.Err() != nil {
			return outcome, &CanceledError{Err: ctx.Err()}
		}
		return outcome, &TimeoutError{Timeout: timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return outcome, &ExecutionError{
			Command:  i.Command,
			ExitCode: exitErr.ExitCode(),
			Stderr:   truncate(outcome.Stderr, stderrLogLimit),
		}
	}

	// exec.ErrWaitDelay after a clean exit: the agent left a child holding
	// its pipes. The output we have is complete enough to use.
	if errors.Is(waitErr, exec.ErrWaitDelay) && outcome.ExitCode == 0 {
		return outcome, nil
	}

	return outcome, fmt.Errorf("wait for %s: %w", i.Command, waitErr)
}

// SpawnError means the process could not be started at all.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExecutionError means the agent exited with a non-zero status.
type ExecutionError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

// TimeoutError means the agent was killed after running too long.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// CanceledError means the caller went away before the agent finished.
type CanceledError struct {
	Err error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("agent canceled: %v", e.Err)
}

func (e *CanceledError) Unwrap() error { return e.Err }

// cappedBuffer keeps the first limit bytes and silently drops the rest so
// a chatty agent never blocks on a full pipe.
type cappedBuffer struct {
	buf   []byte
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return string(b.buf)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
