// Package imagebuild invokes the build-file target that produces one
// component's container image.
package imagebuild

import (
	"context"
	"fmt"

	"github.com/vk/buildgridgo/internal/component"
	"github.com/vk/buildgridgo/internal/ctxlog"
	"github.com/vk/buildgridgo/internal/imageref"
	"github.com/vk/buildgridgo/internal/shell"
)

// BuildError reports a failed image build for one component.
type BuildError struct {
	Component component.Component
	Err       error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build image for component %s: %v", e.Component, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Builder runs build targets through the configured build tool.
type Builder struct {
	runner shell.Runner
	tool   string
}

// NewBuilder creates a Builder. tool is the build-file target runner, e.g. "make".
func NewBuilder(runner shell.Runner, tool string) *Builder {
	return &Builder{runner: runner, tool: tool}
}

// Build invokes the component's build target, producing a local image tagged
// {registry}/{prefix}-{component}:{tag}. A nonzero exit from the target is
// fatal for the owning job and is not retried.
func (b *Builder) Build(ctx context.Context, c component.Component, registry, prefix, tag string) (imageref.Ref, error) {
	ref, err := imageref.New(registry, prefix, c, tag)
	if err != nil {
		return imageref.Ref{}, &BuildError{Component: c, Err: err}
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Building image.", "component", c.String(), "image", ref.String())

	target := fmt.Sprintf("build-%s-docker", c)
	err = b.runner.Run(ctx, b.tool, target,
		fmt.Sprintf("REGISTRY=%s", registry),
		fmt.Sprintf("VERSION=%s", tag),
	)
	if err != nil {
		return imageref.Ref{}, &BuildError{Component: c, Err: err}
	}

	logger.Info("✅ Image built.", "component", c.String(), "image", ref.String())
	return ref, nil
}
