// Package session serves completion requests for one host session. A session
// owns the shell and the script cache, so consecutive requests from the same
// host reuse what earlier ones discovered.
package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/atinylittleshell/yarnspec/internal/completion"
	"go.uber.org/zap"
)

// Request asks for the completion spec of a directory. One request per line.
type Request struct {
	ID int `json:"id"`
	// Cwd is the directory the host's shell is in. Empty keeps the previous one.
	Cwd string `json:"cwd,omitempty"`
}

// Response answers a Request with the same ID. Exactly one of Spec and Error
// is set.
type Response struct {
	ID    int              `json:"id"`
	Spec  *completion.Spec `json:"spec,omitempty"`
	Error string           `json:"error,omitempty"`
}

// Shell is the command execution capability of a session.
type Shell interface {
	completion.ShellExecutor
	Chdir(ctx context.Context, dir string) error
}

// Options configures a Session.
type Options struct {
	// Timeout bounds each request. Zero means no limit.
	Timeout time.Duration
	// Logger is optional.
	Logger *zap.Logger
}

// Session pairs a Shell with a Resolver for the lifetime of a host connection.
type Session struct {
	shell    Shell
	resolver *completion.Resolver
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a Session.
func New(shell Shell, resolver *completion.Resolver, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		shell:    shell,
		resolver: resolver,
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// Resolve moves the shell to dir (when set) and resolves the spec there.
func (s *Session) Resolve(ctx context.Context, dir string) (*completion.Spec, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if dir != "" {
		if err := s.shell.Chdir(ctx, dir); err != nil {
			return nil, err
		}
	}

	return s.resolver.Resolve(ctx, s.shell)
}

// Handle answers a single request.
func (s *Session) Handle(ctx context.Context, req Request) Response {
	start := time.Now()
	spec, err := s.Resolve(ctx, req.Cwd)
	if err != nil {
		s.logger.Warn("completion request failed",
			zap.Int("id", req.ID),
			zap.String("cwd", req.Cwd),
			zap.Error(err))
		return Response{ID: req.ID, Error: err.Error()}
	}

	s.logger.Debug("completion request served",
		zap.Int("id", req.ID),
		zap.String("cwd", req.Cwd),
		zap.Int("scripts", len(spec.Subcommands)),
		zap.Duration("elapsed", time.Since(start)))
	return Response{ID: req.ID, Spec: spec}
}

// Serve reads newline-delimited JSON requests from r and writes one response
// line per request to w, in order, until r is exhausted or ctx is done.
// Malformed lines get an error response with ID 0. A read blocked on r does
// not hold Serve past ctx.
func (s *Session) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	writer := bufio.NewWriter(w)

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := readLines(readCtx, r)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-lines:
			if len(res.line) > 0 {
				if writeErr := s.serveLine(ctx, res.line, writer); writeErr != nil {
					return writeErr
				}
			}
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("read error: %w", res.err)
			}
		}
	}
}

type readResult struct {
	line []byte
	err  error
}

// readLines reads r line by line on its own goroutine. The last result
// carries the read error. The goroutine exits once ctx is done and its
// pending read returns.
func readLines(ctx context.Context, r io.Reader) <-chan readResult {
	lines := make(chan readResult)
	go func() {
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadBytes('\n')
			select {
			case lines <- readResult{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

func (s *Session) serveLine(ctx context.Context, line []byte, writer *bufio.Writer) error {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}

	var resp Response
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Debug("received malformed request, answering with error", zap.ByteString("line", line))
		resp = Response{Error: fmt.Sprintf("malformed request: %v", err)}
	} else {
		resp = s.Handle(ctx, req)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if _, err := writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return writer.Flush()
}
