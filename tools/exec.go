// Exec Tool - run one shell command with a hard timeout
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"
)

var (
	// ErrTimeout means the command exceeded its budget and its process group was killed.
	ErrTimeout = errors.New("command timed out")
	// ErrExecutorMissing means the configured shell binary could not be found.
	ErrExecutorMissing = errors.New("shell executable not found")
)

const (
	maxStdoutBytes = 256 * 1024
	maxStderrBytes = 64 * 1024
	// waitDelay bounds how long Wait blocks on pipes held open by escaped children
	waitDelay = 2 * time.Second
)

// Runner executes a single command string.
type Runner interface {
	Run(ctx context.Context, command string) (ExecResult, error)
}

type ExecResult struct {
	Command         string        `json:"command"`
	Stdout          string        `json:"stdout"`
	Stderr          string        `json:"stderr"`
	StdoutTruncated bool          `json:"stdout_truncated,omitempty"`
	StderrTruncated bool          `json:"stderr_truncated,omitempty"`
	ExitCode        int           `json:"exit_code"`
	TimedOut        bool          `json:"timed_out"`
	Duration        time.Duration `json:"duration"`
}

// Executor runs commands as `<shell argv...> <command>`, e.g. `/bin/sh -c <command>`.
type Executor struct {
	shell   []string
	timeout time.Duration
	workdir string
	logger  *zap.Logger
}

// NewExecutor parses shell with shell-style quoting rules.
func NewExecutor(shell string, timeout time.Duration, logger *zap.Logger) (*Executor, error) {
	argv, err := shlex.Split(shell)
	if err != nil {
		return nil, fmt.Errorf("parse shell %q: %w", shell, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("shell is empty")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{shell: argv, timeout: timeout, logger: logger.Named("exec")}, nil
}

// WithWorkdir returns a copy that runs commands in dir.
func (e *Executor) WithWorkdir(dir string) *Executor {
	c := *e
	c.workdir = dir
	return &c
}

// Timeout returns the per-command budget.
func (e *Executor) Timeout() time.Duration { return e.timeout }

// ShellName returns the shell binary, for prompts and logs.
func (e *Executor) ShellName() string { return e.shell[0] }

// Run executes command. A non-zero exit status is reported in ExitCode, not as an error.
// Errors are ErrTimeout, ErrExecutorMissing or a wrapped start/wait failure.
func (e *Executor) Run(ctx context.Context, command string) (ExecResult, error) {
	result := ExecResult{Command: command, ExitCode: -1}
	if strings.TrimSpace(command) == "" {
		return result, fmt.Errorf("command is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, e.shell[1:]...), command)
	cmd := exec.CommandContext(ctx, e.shell[0], args...)
	cmd.Dir = e.workdir
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	outW := &limitedWriter{w: &stdout, max: maxStdoutBytes}
	errW := &limitedWriter{w: &stderr, max: maxStderrBytes}
	cmd.Stdout = outW
	cmd.Stderr = errW

	start := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(start)
	// the group is private to this command; reap anything the shell left behind
	if err := killProcessGroup(cmd); err != nil {
		e.logger.Debug("process group cleanup failed", zap.Error(err))
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.StdoutTruncated = outW.truncated
	result.StderrTruncated = errW.truncated
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		e.logger.Warn("command timed out", zap.String("command", command), zap.Duration("timeout", e.timeout))
		return result, ErrTimeout
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		// the shell exited but a background child kept its output open
		e.logger.Info("command left background processes", zap.String("command", command), zap.Int("exit_code", result.ExitCode))
		runErr = nil
	}
	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) || (cmd.ProcessState == nil && errors.Is(runErr, fs.ErrNotExist)) {
			e.logger.Error("shell not found", zap.String("shell", e.shell[0]), zap.Error(runErr))
			return result, fmt.Errorf("%w: %s", ErrExecutorMissing, e.shell[0])
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			e.logger.Info("command exited", zap.String("command", command), zap.Int("exit_code", result.ExitCode))
			return result, nil
		}
		return result, fmt.Errorf("run command: %w", runErr)
	}

	e.logger.Info("command executed", zap.String("command", command), zap.Int("exit_code", result.ExitCode), zap.Duration("took", result.Duration))
	return result, nil
}

// limitedWriter drops output past max bytes but reports full writes so the child never blocks.
type limitedWriter struct {
	w         *bytes.Buffer
	max       int
	truncated bool
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	room := l.max - l.w.Len()
	if room <= 0 {
		l.truncated = true
		return n, nil
	}
	if len(p) > room {
		p = p[:room]
		l.truncated = true
	}
	l.w.Write(p)
	return n, nil
}
