// Package shell abstracts the invocation of external tools (the build-target
// runner, the container CLI, the lint container) behind a small interface so
// the pipeline stages stay testable without spawning processes.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/vk/buildgridgo/internal/ctxlog"
)

// Runner executes a single external command to completion.
type Runner interface {
	// Run executes the command and returns an error on any nonzero exit.
	// The command's output is streamed to the context logger.
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner is the os/exec backed Runner used in production.
type ExecRunner struct {
	// Dir, when set, is the working directory for every command.
	Dir string
	// Env entries are appended to the inherited environment.
	Env []string
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	logger := ctxlog.FromContext(ctx).With("cmd", name)
	logger.Debug("Invoking external command.", "args", args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	cmd.Stdout = &lineWriter{log: func(line string) { logger.Info(line) }}
	cmd.Stderr = &lineWriter{log: func(line string) { logger.Warn(line) }}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// lineWriter forwards complete output lines to a log function. Partial lines
// are buffered until the next write or flushed implicitly at process exit by
// the trailing newline most tools emit.
type lineWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	log func(line string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line; keep it buffered.
			w.buf.WriteString(line)
			break
		}
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			w.log(trimmed)
		}
	}
	return len(p), nil
}
