// Package bash runs shell commands for the completion resolver through an
// embedded mvdan/sh interpreter, so the commands see the same environment and
// working directory as the user's shell session.
package bash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ExecMiddleware wraps an ExecHandlerFunc, e.g. for logging external commands.
type ExecMiddleware = func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc

// Options configures a Shell.
type Options struct {
	// Dir is the starting directory. Empty means the process working directory.
	Dir string
	// Env is the environment in "KEY=value" form. Nil means os.Environ().
	Env []string
	// KillTimeout is how long a cancelled command gets between SIGINT and
	// SIGKILL. Negative kills immediately.
	KillTimeout time.Duration
	// Logger is optional.
	Logger *zap.Logger
}

// Shell executes commands in subshells of a long-lived runner. The runner's
// directory only changes through Chdir.
type Shell struct {
	runner *interp.Runner
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewShell creates a Shell.
func NewShell(opts Options) (*Shell, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, io.Discard, io.Discard),
		interp.ExecHandlers(
			newLoggingExecHandler(logger),
			newKillTimeoutExecHandler(opts.KillTimeout),
		),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bash runner: %w", err)
	}
	runner.Reset()

	return &Shell{
		runner: runner,
		logger: logger,
	}, nil
}

// Execute runs command in a subshell and returns its standard output with
// trailing newlines removed. A non-zero exit status is not an error: the
// output is whatever the command printed, as with a host shell. Parse and
// execution failures are returned.
func (s *Shell) Execute(ctx context.Context, command string) (string, error) {
	stdout, stderr, exitCode, err := s.ExecuteWithExitCode(ctx, command)
	if err != nil {
		return "", err
	}
	if exitCode != 0 {
		s.logger.Debug("command exited with non-zero status",
			zap.String("command", command),
			zap.Int("exitCode", exitCode),
			zap.String("stderr", strings.TrimSpace(stderr)))
	}
	return strings.TrimRight(stdout, "\r\n"), nil
}

// ExecuteWithExitCode runs command in a subshell and captures stdout/stderr.
// A non-zero exit code is NOT treated as an error - check the exit code separately.
func (s *Shell) ExecuteWithExitCode(ctx context.Context, command string) (string, string, int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return "", "", 1, fmt.Errorf("failed to parse bash command: %w", err)
	}

	s.mu.RLock()
	subShell := s.runner.Subshell()
	s.mu.RUnlock()

	outBuf := &threadSafeBuffer{}
	errBuf := &threadSafeBuffer{}
	interp.StdIO(nil, outBuf, errBuf)(subShell) //nolint:errcheck

	err = subShell.Run(ctx, prog)
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			// Non-zero exit code is not an execution error
			return outBuf.String(), errBuf.String(), int(exitStatus), nil
		}
		return outBuf.String(), errBuf.String(), 1, err
	}

	return outBuf.String(), errBuf.String(), 0, nil
}

// Chdir changes the directory of the runner, and of every later subshell,
// with the shell's own cd builtin.
func (s *Shell) Chdir(ctx context.Context, dir string) error {
	quoted, err := syntax.Quote(dir, syntax.LangBash)
	if err != nil {
		return fmt.Errorf("invalid directory %q: %w", dir, err)
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader("cd "+quoted), "")
	if err != nil {
		return fmt.Errorf("failed to parse bash command: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.runner.Run(ctx, prog); err != nil {
		return fmt.Errorf("failed to change directory to %s: %w", dir, err)
	}
	return nil
}

func newLoggingExecHandler(logger *zap.Logger) ExecMiddleware {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			start := time.Now()
			err := next(ctx, args)
			logger.Debug("exec",
				zap.Strings("args", args),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return err
		}
	}
}

// newKillTimeoutExecHandler terminates the chain with the interpreter's
// default process execution, using the configured kill timeout.
func newKillTimeoutExecHandler(killTimeout time.Duration) ExecMiddleware {
	return func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return interp.DefaultExecHandler(killTimeout)
	}
}

// threadSafeBuffer provides a thread-safe wrapper around bytes.Buffer
type threadSafeBuffer struct {
	buffer bytes.Buffer
	mutex  sync.Mutex
}

// Write implements io.Writer interface
func (b *threadSafeBuffer) Write(p []byte) (n int, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.Write(p)
}

// String returns the contents of the buffer as a string
func (b *threadSafeBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.String()
}
