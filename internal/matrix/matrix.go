// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package matrix fans the fixed component set out across a worker pool. Each
// component runs one build job (fetch → build → publish, plus the conditional
// PR-alias retag) as an independent unit: one component's failure never
// prevents the others from completing.
package matrix

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/vk/buildgridgo/internal/component"
	"github.com/vk/buildgridgo/internal/config"
	"github.com/vk/buildgridgo/internal/ctxlog"
	"github.com/vk/buildgridgo/internal/event"
	"github.com/vk/buildgridgo/internal/imageref"
)

// Stage names the pipeline stage a job result refers to.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageBuild   Stage = "build"
	StagePublish Stage = "publish"
	StageRetag   Stage = "retag"
)

// Fetcher retrieves the dependency cache archive into a local directory.
type Fetcher interface {
	Fetch(ctx context.Context, archiveURI, destDir string) error
}

// Builder produces a tagged local image for one component.
type Builder interface {
	Build(ctx context.Context, c component.Component, registry, prefix, tag string) (imageref.Ref, error)
}

// Publisher pushes image references to the registry.
type Publisher interface {
	Push(ctx context.Context, ref imageref.Ref) error
	RetagAndPush(ctx context.Context, ref imageref.Ref, newTag string) (imageref.Ref, error)
}

// Result is the terminal outcome of one component's build job.
type Result struct {
	Component component.Component
	// Refs are the image references published for this component: the
	// primary commit-SHA reference and, on pull requests, the PR alias.
	Refs []imageref.Ref
	// Stage names the failing stage when Err is set.
	Stage Stage
	// Err is the first failure encountered, nil on success.
	Err error
}

// Succeeded reports whether the job ran all stages without error.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Runner owns the per-run build jobs and executes them concurrently.
type Runner struct {
	cfg       *config.Model
	fetcher   Fetcher
	builder   Builder
	publisher Publisher
}

// NewRunner wires the three stage collaborators into a matrix runner.
func NewRunner(cfg *config.Model, f Fetcher, b Builder, p Publisher) *Runner {
	return &Runner{cfg: cfg, fetcher: f, builder: b, publisher: p}
}

// Run executes one build job per configured component and returns the full
// result map. It never short-circuits: every component gets exactly one
// Result whether or not its siblings fail.
func (r *Runner) Run(ctx context.Context, ev event.Event) map[component.Component]Result {
	logger := ctxlog.FromContext(ctx)
	components := r.cfg.Components

	workerCount := r.cfg.Workers
	if workerCount > len(components) {
		workerCount = len(components)
	}
	logger.Info("🚀 Starting matrix build.",
		"components", len(components), "workers", workerCount, "sha", ev.SHA)

	jobs := make(chan component.Component)
	results := make(map[component.Component]Result, len(components))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for workerID := 0; workerID < workerCount; workerID++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for c := range jobs {
				res := r.runJob(ctxlog.With(ctx, "workerID", workerID, "component", c.String()), c, ev)
				mu.Lock()
				results[c] = res
				mu.Unlock()
			}
		}(workerID)
	}

	for _, c := range components {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	logger.Info("🏁 Matrix build finished.", "results", len(results))
	return results
}

// runJob executes the strictly sequential stages of one component's build
// job and returns its terminal result.
func (r *Runner) runJob(ctx context.Context, c component.Component, ev event.Event) Result {
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Starting build job.")

	if r.cfg.CacheURI != "" {
		cacheDir, err := os.MkdirTemp("", fmt.Sprintf("buildcache-%s-", c))
		if err != nil {
			return Result{Component: c, Stage: StageFetch, Err: err}
		}
		defer os.RemoveAll(cacheDir)

		if err := r.fetcher.Fetch(ctx, r.cfg.CacheURI, cacheDir); err != nil {
			logger.Error("Build job failed.", "stage", StageFetch, "error", err)
			return Result{Component: c, Stage: StageFetch, Err: err}
		}
	}

	ref, err := r.builder.Build(ctx, c, r.cfg.Registry, r.cfg.ImagePrefix, ev.SHA)
	if err != nil {
		logger.Error("Build job failed.", "stage", StageBuild, "error", err)
		return Result{Component: c, Stage: StageBuild, Err: err}
	}

	if err := r.publisher.Push(ctx, ref); err != nil {
		logger.Error("Build job failed.", "stage", StagePublish, "error", err)
		return Result{Component: c, Stage: StagePublish, Err: err}
	}
	refs := []imageref.Ref{ref}

	if ev.HasPRAlias() {
		alias, err := r.publisher.RetagAndPush(ctx, ref, ev.PRHeadSHA)
		if err != nil {
			logger.Error("Build job failed.", "stage", StageRetag, "error", err)
			return Result{Component: c, Stage: StageRetag, Refs: refs, Err: err}
		}
		refs = append(refs, alias)
	}

	logger.Info("✅ Build job succeeded.", "published", len(refs))
	return Result{Component: c, Refs: refs}
}
