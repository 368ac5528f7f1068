// Package orchestrator is the top-level driver: on a trigger event it runs
// the build matrix and both lint jobs concurrently and reduces their
// outcomes to a single terminal run state.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/vk/buildgridgo/internal/component"
	"github.com/vk/buildgridgo/internal/ctxlog"
	"github.com/vk/buildgridgo/internal/event"
	"github.com/vk/buildgridgo/internal/lint"
	"github.com/vk/buildgridgo/internal/matrix"
)

// State is the orchestrator's run state, managed atomically.
type State int32

const (
	Pending State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// MatrixRunner runs one build job per component and reports every result.
type MatrixRunner interface {
	Run(ctx context.Context, ev event.Event) map[component.Component]matrix.Result
}

// LintRunner runs one named lint target to completion.
type LintRunner interface {
	Run(ctx context.Context, target lint.Target) error
}

// PipelineRun aggregates the outcomes of one triggered run.
type PipelineRun struct {
	ID           string
	Event        event.Event
	State        State
	BuildResults map[component.Component]matrix.Result
	LintResults  map[lint.Target]error
}

// Succeeded reports whether every constituent job succeeded.
func (r *PipelineRun) Succeeded() bool {
	return r.State == Succeeded
}

// Orchestrator drives one pipeline run through
// Pending -> Running -> {Succeeded, Failed}.
type Orchestrator struct {
	components []component.Component
	matrix     MatrixRunner
	lint       LintRunner

	state atomic.Int32
}

// New creates an Orchestrator for one run over the given component set.
func New(components []component.Component, m MatrixRunner, l LintRunner) *Orchestrator {
	return &Orchestrator{components: components, matrix: m, lint: l}
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Run executes the full pipeline for one trigger event. The matrix and both
// lint targets run concurrently and all run to completion; a failure in one
// never cancels the others. The returned error is non-nil iff the run
// reached Failed, and lists every job failure.
func (o *Orchestrator) Run(ctx context.Context, ev event.Event) (*PipelineRun, error) {
	if !o.state.CompareAndSwap(int32(Pending), int32(Running)) {
		return nil, errors.New("orchestrator has already run")
	}

	run := &PipelineRun{
		ID:          uuid.NewString(),
		Event:       ev,
		LintResults: make(map[lint.Target]error, len(lint.Targets())),
	}
	ctx = ctxlog.With(ctx, "runID", run.ID)
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Pipeline run started.", "kind", string(ev.Kind), "sha", ev.SHA)

	// errgroup without a derived context: a branch error must not cancel
	// the sibling branches.
	var g errgroup.Group
	var mu sync.Mutex

	g.Go(func() error {
		run.BuildResults = o.matrix.Run(ctx, ev)
		return nil
	})
	for _, target := range lint.Targets() {
		g.Go(func() error {
			err := o.lint.Run(ctx, target)
			mu.Lock()
			run.LintResults[target] = err
			mu.Unlock()
			return nil
		})
	}
	// Branches record their own outcomes and never return an error.
	_ = g.Wait()

	err := o.reduce(run)
	if err != nil {
		o.state.Store(int32(Failed))
		run.State = Failed
		logger.Error("❌ Pipeline run failed.", "error", err)
		return run, err
	}

	o.state.Store(int32(Succeeded))
	run.State = Succeeded
	logger.Info("🏁 Pipeline run succeeded.")
	return run, nil
}

// reduce folds every job outcome into a single error, nil iff all succeeded.
func (o *Orchestrator) reduce(run *PipelineRun) error {
	var merr *multierror.Error
	for _, c := range o.components {
		res, ok := run.BuildResults[c]
		if !ok {
			merr = multierror.Append(merr, errors.New("missing build result for component "+c.String()))
			continue
		}
		if res.Err != nil {
			merr = multierror.Append(merr, res.Err)
		}
	}
	for _, target := range lint.Targets() {
		if err := run.LintResults[target]; err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
