// Package lint runs the static-check targets inside a prebuilt tool
// container, independently of the build matrix.
package lint

import (
	"context"
	"fmt"

	"github.com/vk/buildgridgo/internal/config"
	"github.com/vk/buildgridgo/internal/ctxlog"
	"github.com/vk/buildgridgo/internal/shell"
)

// Target names one of the two lint jobs.
type Target string

const (
	Java   Target = "java"
	Python Target = "python"
)

// Targets returns both lint targets in canonical order.
func Targets() []Target {
	return []Target{Java, Python}
}

// LintError reports a failed lint step for one target.
type LintError struct {
	Target Target
	// Step is the build-file target that exited nonzero, e.g. "lint-python"
	// or the dependency-install step preceding it.
	Step string
	Err  error
}

func (e *LintError) Error() string {
	return fmt.Sprintf("lint %s failed at step %s: %v", e.Target, e.Step, e.Err)
}

func (e *LintError) Unwrap() error {
	return e.Err
}

// Runner executes lint targets. Safe for concurrent use; the two targets run
// independently of each other and of the build matrix.
type Runner struct {
	runner shell.Runner
	tool   string
	cfg    config.Lint
}

// NewRunner creates a lint Runner. tool is the container CLI used to enter
// the tool image, e.g. "docker".
func NewRunner(runner shell.Runner, tool string, cfg config.Lint) *Runner {
	return &Runner{runner: runner, tool: tool, cfg: cfg}
}

// Run executes the named lint target. The python target installs its
// dependencies first; any nonzero step exit fails the job.
func (r *Runner) Run(ctx context.Context, target Target) error {
	logger := ctxlog.FromContext(ctx).With("lint", string(target))
	logger.Info("▶️ Starting lint job.", "image", r.cfg.Image)

	var steps []string
	switch target {
	case Java:
		steps = []string{r.cfg.JavaTarget}
	case Python:
		steps = []string{r.cfg.InstallTarget, r.cfg.PythonTarget}
	default:
		return &LintError{Target: target, Step: "resolve", Err: fmt.Errorf("unknown lint target %q", target)}
	}

	for _, step := range steps {
		if err := r.runner.Run(ctx, r.tool, "run", "--rm", r.cfg.Image, "make", step); err != nil {
			return &LintError{Target: target, Step: step, Err: err}
		}
	}

	logger.Info("✅ Lint job finished.")
	return nil
}
