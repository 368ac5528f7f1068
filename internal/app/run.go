package app

import (
	"context"
	"fmt"

	"github.com/vk/buildgridgo/internal/cachefetch"
	"github.com/vk/buildgridgo/internal/ctxlog"
	"github.com/vk/buildgridgo/internal/event"
	"github.com/vk/buildgridgo/internal/imagebuild"
	"github.com/vk/buildgridgo/internal/imageref"
	"github.com/vk/buildgridgo/internal/lint"
	"github.com/vk/buildgridgo/internal/matrix"
	"github.com/vk/buildgridgo/internal/orchestrator"
	"github.com/vk/buildgridgo/internal/publish"
	"github.com/vk/buildgridgo/internal/shell"
)

// Run resolves the trigger event and executes the full pipeline run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	ev, err := a.resolveEvent()
	if err != nil {
		return err
	}
	a.logger.Info("Trigger event resolved.",
		"kind", string(ev.Kind), "sha", ev.SHA, "pr_head_sha", ev.PRHeadSHA)

	if a.config.DryRun {
		return a.dryRun(ev)
	}

	fetcher := cachefetch.NewFetcher(a.model.Cache)
	defer fetcher.Close()

	execRunner := &shell.ExecRunner{}
	builder := imagebuild.NewBuilder(execRunner, a.model.BuildTool)
	publisher := publish.NewPublisher(execRunner, a.model.ContainerTool, a.model.AuthCommand)
	matrixRunner := matrix.NewRunner(a.model, fetcher, builder, publisher)
	lintRunner := lint.NewRunner(execRunner, a.model.ContainerTool, a.model.Lint)

	orch := orchestrator.New(a.model.Components, matrixRunner, lintRunner)
	run, err := orch.Run(ctx, ev)
	if err != nil {
		if run == nil {
			return err
		}
		return fmt.Errorf("pipeline run %s failed: %w", run.ID, err)
	}

	for _, c := range a.model.Components {
		for _, ref := range run.BuildResults[c].Refs {
			fmt.Fprintf(a.outW, "published %s\n", ref)
		}
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// resolveEvent builds the trigger from the event file or the inline fields.
func (a *App) resolveEvent() (event.Event, error) {
	if a.config.EventPath != "" {
		return event.LoadFile(a.config.EventPath)
	}
	return event.New(a.config.EventKind, a.config.SHA, a.config.PRHeadSHA)
}

// dryRun prints the would-be observable outputs without invoking any
// external tool.
func (a *App) dryRun(ev event.Event) error {
	for _, c := range a.model.Components {
		ref, err := imageref.New(a.model.Registry, a.model.ImagePrefix, c, ev.SHA)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "would publish %s\n", ref)
		if ev.HasPRAlias() {
			alias, err := ref.WithTag(ev.PRHeadSHA)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.outW, "would publish %s\n", alias)
		}
	}
	for _, target := range lint.Targets() {
		fmt.Fprintf(a.outW, "would lint %s in %s\n", target, a.model.Lint.Image)
	}
	return nil
}
