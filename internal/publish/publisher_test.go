package publish

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/buildgridgo/internal/component"
	"github.com/vk/buildgridgo/internal/ctxlog"
	"github.com/vk/buildgridgo/internal/imageref"
	"github.com/vk/buildgridgo/internal/shell"
)

func testContext() context.Context {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func mustRef(t *testing.T, c component.Component, tag string) imageref.Ref {
	t.Helper()
	ref, err := imageref.New("gcr.io/kf-feast", "", c, tag)
	require.NoError(t, err)
	return ref
}

func authCommand() []string {
	return []string{"gcloud", "auth", "configure-docker", "--quiet"}
}

func TestPush_AuthenticatesThenPushes(t *testing.T) {
	t.Parallel()

	runner := &shell.ScriptedRunner{}
	p := NewPublisher(runner, "docker", authCommand())

	err := p.Push(testContext(), mustRef(t, component.Core, "abc123"))

	require.NoError(t, err)
	require.Equal(t, []string{
		"gcloud auth configure-docker --quiet",
		"docker push gcr.io/kf-feast/feast-core:abc123",
	}, runner.Calls())
}

func TestPush_AuthRunsOncePerPublisher(t *testing.T) {
	t.Parallel()

	runner := &shell.ScriptedRunner{}
	p := NewPublisher(runner, "docker", authCommand())
	ctx := testContext()

	// Concurrent pushes from multiple jobs share one authentication.
	refs := make([]imageref.Ref, 0, len(component.All()))
	for _, c := range component.All() {
		refs = append(refs, mustRef(t, c, "abc123"))
	}
	errs := make([]error, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref imageref.Ref) {
			defer wg.Done()
			errs[i] = p.Push(ctx, ref)
		}(i, ref)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, runner.CallsMatching("gcloud auth"), 1)
	require.Len(t, runner.CallsMatching("docker push"), len(component.All()))
}

func TestPush_AuthFailureIsSharedAndWrapped(t *testing.T) {
	t.Parallel()

	denied := errors.New("exit status 1")
	runner := &shell.ScriptedRunner{FailOn: map[string]error{"gcloud auth": denied}}
	p := NewPublisher(runner, "docker", authCommand())
	ctx := testContext()

	err1 := p.Push(ctx, mustRef(t, component.Core, "abc123"))
	err2 := p.Push(ctx, mustRef(t, component.Serving, "abc123"))

	require.ErrorIs(t, err1, ErrAuth)
	require.ErrorIs(t, err2, ErrAuth, "the cached auth failure applies to every push")
	require.Len(t, runner.CallsMatching("gcloud auth"), 1, "the auth command is not retried")
	require.Empty(t, runner.CallsMatching("docker push"), "nothing is pushed after auth failure")
}

func TestPush_RegistryRejection(t *testing.T) {
	t.Parallel()

	rejected := errors.New("exit status 1")
	runner := &shell.ScriptedRunner{FailOn: map[string]error{"docker push": rejected}}
	p := NewPublisher(runner, "docker", authCommand())

	err := p.Push(testContext(), mustRef(t, component.Core, "abc123"))

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	require.Equal(t, "gcr.io/kf-feast/feast-core:abc123", pubErr.Ref.String())
	require.ErrorIs(t, err, rejected)
}

func TestRetagAndPush(t *testing.T) {
	t.Parallel()

	runner := &shell.ScriptedRunner{}
	p := NewPublisher(runner, "docker", authCommand())
	primary := mustRef(t, component.Jupyter, "abc123")

	alias, err := p.RetagAndPush(testContext(), primary, "def456")

	require.NoError(t, err)
	require.Equal(t, "gcr.io/kf-feast/feast-jupyter:def456", alias.String())
	require.Equal(t, []string{
		"gcloud auth configure-docker --quiet",
		"docker tag gcr.io/kf-feast/feast-jupyter:abc123 gcr.io/kf-feast/feast-jupyter:def456",
		"docker push gcr.io/kf-feast/feast-jupyter:def456",
	}, runner.Calls())
}

func TestRetagAndPush_TagFailure(t *testing.T) {
	t.Parallel()

	tagErr := errors.New("exit status 1")
	runner := &shell.ScriptedRunner{FailOn: map[string]error{"docker tag": tagErr}}
	p := NewPublisher(runner, "docker", authCommand())

	_, err := p.RetagAndPush(testContext(), mustRef(t, component.Core, "abc123"), "def456")

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	require.ErrorIs(t, err, tagErr)
	require.Empty(t, runner.CallsMatching("docker push"), "a failed retag must not push the alias")
}

func TestPush_NoAuthCommandConfigured(t *testing.T) {
	t.Parallel()

	runner := &shell.ScriptedRunner{}
	p := NewPublisher(runner, "docker", nil)

	err := p.Push(testContext(), mustRef(t, component.Core, "abc123"))

	require.NoError(t, err)
	require.Equal(t, []string{"docker push gcr.io/kf-feast/feast-core:abc123"}, runner.Calls())
}
