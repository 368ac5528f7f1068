// Package publish authenticates to the target container registry and pushes
// built images, including the conditional PR-alias retag.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/buildgridgo/internal/ctxlog"
	"github.com/vk/buildgridgo/internal/imageref"
	"github.com/vk/buildgridgo/internal/shell"
)

// ErrAuth marks publish failures caused by registry authentication.
var ErrAuth = errors.New("registry authentication failed")

// PublishError reports a failed push or retag for one image reference.
type PublishError struct {
	Ref imageref.Ref
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish %s: %v", e.Ref, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Publisher pushes image references through the container tool. It is safe
// for concurrent use by all matrix jobs; authentication runs at most once
// per run regardless of how many jobs publish.
type Publisher struct {
	runner      shell.Runner
	tool        string
	authCommand []string

	authOnce sync.Once
	authErr  error
}

// NewPublisher creates a Publisher. tool is the container CLI, e.g. "docker";
// authCommand is the registry login invocation run before the first push.
func NewPublisher(runner shell.Runner, tool string, authCommand []string) *Publisher {
	return &Publisher{runner: runner, tool: tool, authCommand: authCommand}
}

// Push authenticates if needed, then pushes the image under its existing tag.
func (p *Publisher) Push(ctx context.Context, ref imageref.Ref) error {
	if err := p.authenticate(ctx); err != nil {
		return &PublishError{Ref: ref, Err: err}
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Pushing image.", "image", ref.String())

	if err := p.runner.Run(ctx, p.tool, "push", ref.String()); err != nil {
		return &PublishError{Ref: ref, Err: err}
	}

	logger.Info("✅ Image pushed.", "image", ref.String())
	return nil
}

// RetagAndPush applies newTag to the already-built local image and pushes
// that second reference. Used exactly when the triggering event carries a
// pull-request head SHA.
func (p *Publisher) RetagAndPush(ctx context.Context, ref imageref.Ref, newTag string) (imageref.Ref, error) {
	alias, err := ref.WithTag(newTag)
	if err != nil {
		return imageref.Ref{}, &PublishError{Ref: ref, Err: err}
	}
	if err := p.authenticate(ctx); err != nil {
		return imageref.Ref{}, &PublishError{Ref: alias, Err: err}
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Retagging image for pull request.", "image", ref.String(), "alias", alias.String())

	if err := p.runner.Run(ctx, p.tool, "tag", ref.String(), alias.String()); err != nil {
		return imageref.Ref{}, &PublishError{Ref: alias, Err: err}
	}
	if err := p.runner.Run(ctx, p.tool, "push", alias.String()); err != nil {
		return imageref.Ref{}, &PublishError{Ref: alias, Err: err}
	}

	logger.Info("✅ Alias pushed.", "alias", alias.String())
	return alias, nil
}

// authenticate runs the configured auth command exactly once per Publisher.
// The result, success or failure, is shared by every subsequent push.
func (p *Publisher) authenticate(ctx context.Context) error {
	p.authOnce.Do(func() {
		if len(p.authCommand) == 0 {
			return
		}
		logger := ctxlog.FromContext(ctx)
		logger.Info("Authenticating to container registry.")
		if err := p.runner.Run(ctx, p.authCommand[0], p.authCommand[1:]...); err != nil {
			p.authErr = fmt.Errorf("%w: %v", ErrAuth, err)
		}
	})
	return p.authErr
}
