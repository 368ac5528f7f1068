package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/buildgridgo/internal/config"
	"github.com/vk/buildgridgo/internal/hcl"
)

func writePipeline(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func minimalPipeline(t *testing.T) string {
	t.Helper()
	return writePipeline(t, `
	pipeline {
		registry = "gcr.io/kf-feast"
		lint { image = "gcr.io/kf-feast/feast-ci:latest" }
	}
	`)
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid inline trigger",
			cfg:  Config{PipelinePath: "pipeline.hcl", EventKind: "push", SHA: "abc123"},
		},
		{
			name: "valid event file trigger",
			cfg:  Config{PipelinePath: "pipeline.hcl", EventPath: "event.yaml"},
		},
		{
			name:    "missing pipeline path",
			cfg:     Config{SHA: "abc123"},
			wantErr: "PipelinePath is a required configuration field",
		},
		{
			name:    "missing trigger",
			cfg:     Config{PipelinePath: "pipeline.hcl"},
			wantErr: "a trigger is required",
		},
		{
			name:    "conflicting triggers",
			cfg:     Config{PipelinePath: "pipeline.hcl", EventPath: "event.yaml", SHA: "abc123"},
			wantErr: "mutually exclusive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewConfig(tc.cfg)

			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
		})
	}
}

func TestNewApp_LoadsModelAndAppliesWorkerOverride(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(Config{
		PipelinePath: minimalPipeline(t),
		EventKind:    "push",
		SHA:          "abc123",
		Workers:      2,
	})
	require.NoError(t, err)

	testApp, _ := SetupAppTest(t, cfg, hcl.NewLoader())

	require.Equal(t, "gcr.io/kf-feast", testApp.Model().Registry)
	require.Equal(t, 2, testApp.Model().Workers, "the CLI worker override takes precedence over the pipeline file")
}

func TestNewApp_PanicsOnBrokenPipelineFile(t *testing.T) {
	t.Parallel()

	path := writePipeline(t, `pipeline { registry = `)
	cfg, err := NewConfig(Config{PipelinePath: path, EventKind: "push", SHA: "abc123"})
	require.NoError(t, err)

	require.Panics(t, func() {
		NewApp(&SafeBuffer{}, cfg, hcl.NewLoader())
	})
}

func TestRun_DryRun_PushScenario(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(Config{
		PipelinePath: minimalPipeline(t),
		EventKind:    "push",
		SHA:          "abc123",
		DryRun:       true,
	})
	require.NoError(t, err)
	testApp, out := SetupAppTest(t, cfg, hcl.NewLoader())

	require.NoError(t, testApp.Run(context.Background()))

	output := out.String()
	require.Equal(t, 5, strings.Count(output, "would publish "), "push events resolve one reference per component")
	require.Contains(t, output, "would publish gcr.io/kf-feast/feast-core:abc123")
	require.NotContains(t, output, ":def456")
	require.Contains(t, output, "would lint java")
	require.Contains(t, output, "would lint python")
}

func TestRun_DryRun_PullRequestScenario(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(Config{
		PipelinePath: minimalPipeline(t),
		EventKind:    "pull_request",
		SHA:          "abc123",
		PRHeadSHA:    "def456",
		DryRun:       true,
	})
	require.NoError(t, err)
	testApp, out := SetupAppTest(t, cfg, hcl.NewLoader())

	require.NoError(t, testApp.Run(context.Background()))

	output := out.String()
	require.Equal(t, 10, strings.Count(output, "would publish "), "pull requests resolve a primary and an alias reference per component")
	require.Contains(t, output, "would publish gcr.io/kf-feast/feast-jupyter:abc123")
	require.Contains(t, output, "would publish gcr.io/kf-feast/feast-jupyter:def456")
}

func TestRun_EventFileTrigger(t *testing.T) {
	t.Parallel()

	eventPath := filepath.Join(t.TempDir(), "event.yaml")
	require.NoError(t, os.WriteFile(eventPath, []byte("kind: pull_request\nsha: abc123\npr_head_sha: def456\n"), 0o600))

	cfg, err := NewConfig(Config{
		PipelinePath: minimalPipeline(t),
		EventPath:    eventPath,
		DryRun:       true,
	})
	require.NoError(t, err)
	testApp, out := SetupAppTest(t, cfg, hcl.NewLoader())

	require.NoError(t, testApp.Run(context.Background()))

	require.Contains(t, out.String(), "would publish gcr.io/kf-feast/feast-core:def456",
		"the alias from the event file must be resolved")
}

func TestRun_InvalidInlineEvent(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(Config{
		PipelinePath: minimalPipeline(t),
		EventKind:    "push",
		SHA:          "abc123",
		PRHeadSHA:    "def456",
	})
	require.NoError(t, err)
	testApp, _ := SetupAppTest(t, cfg, hcl.NewLoader())

	err = testApp.Run(context.Background())

	require.Error(t, err)
	require.Contains(t, err.Error(), "must not carry a pull-request head SHA")
}

var _ config.Loader = (*hcl.Loader)(nil)
