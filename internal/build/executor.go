package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/paths"
	"github.com/cruciblehq/fishbowl/internal/recipe"
	"github.com/cruciblehq/fishbowl/internal/runtime"
)

// Operations the executor needs from a stage container.
type stageContainer interface {
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (*runtime.ExecResult, error)
	MkdirAll(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	CopyTo(ctx context.Context, r io.Reader, destDir string) error
	CopyFrom(ctx context.Context, w io.Writer, path string) error
	Stop(ctx context.Context) error
	Export(ctx context.Context, output string, opts runtime.ExportOptions) (string, error)
	Destroy(ctx context.Context)
}

// Starts a stage container from a resolved base image.
type starterFunc func(ctx context.Context, src recipe.Source, id, platform string) (stageContainer, error)

// Holds shared state for building all stages of a recipe.
type executor struct {
	start      starterFunc           // Starts stage containers.
	resource   string                // Prefix for container IDs.
	output     string                // Output directory for the exported images.
	context    string                // Root for resolving host copy sources.
	export     runtime.ExportOptions // Image config for the exported stage.
	platforms  []string              // Target platforms to build for.
	containers []stageContainer      // Every stage container started, destroyed after the build.
	archives   []string              // Archive paths written so far.
	exported   []string              // Platform of each written archive.
}

// Creates an [executor] backed by the containerd runtime.
func newExecutor(rt *runtime.Runtime, opts Options) *executor {
	start := func(ctx context.Context, src recipe.Source, id, platform string) (stageContainer, error) {
		var (
			ctr *runtime.Container
			err error
		)
		if src.Kind == recipe.SourceArchive {
			ctr, err = rt.StartContainer(ctx, src.Value, id, platform)
		} else {
			ctr, err = rt.PullContainer(ctx, src.Value, id, platform)
		}
		if err != nil {
			return nil, err
		}
		return ctr, nil
	}

	return &executor{
		start:     start,
		resource:  opts.Resource,
		output:    opts.Output,
		context:   opts.Root,
		export:    opts.Export,
		platforms: opts.Platforms,
	}
}

// Builds the recipe for every target platform.
//
// All stage containers are destroyed when the build completes. On failure,
// archives already written by this run are removed, so a failed run never
// leaves an image behind.
func (e *executor) build(ctx context.Context, stages []recipe.Stage) (*Result, error) {
	defer e.destroyContainers(context.WithoutCancel(ctx))

	for _, platform := range e.platforms {
		if err := e.buildPlatform(ctx, stages, platform); err != nil {
			e.discardArchives()
			return nil, err
		}
	}

	return &Result{Output: e.output, Archives: e.archives, Platforms: e.exported}, nil
}

// Builds all stages of the recipe for a single platform.
//
// Each platform keeps its own set of named stage containers for cross-stage
// copy lookups.
func (e *executor) buildPlatform(ctx context.Context, stages []recipe.Stage, platform string) error {
	slog.Info("building platform", "platform", platform)

	output := e.platformOutput(platform)
	if err := os.MkdirAll(output, paths.DefaultDirMode); err != nil {
		return fault.Wrap(ErrFileSystemOperation, err)
	}

	named := make(map[string]stageContainer)

	for i, stage := range stages {
		if err := e.buildStage(ctx, stage, i, platform, output, named); err != nil {
			return fault.Wrapf(ErrBuild, "platform %s, stage %s: %w", platform, recipe.StageLabel(stage.Name, i), err)
		}
	}

	return nil
}

// Builds one stage: starts its container, runs its steps, and exports it
// when it is the non-transient stage.
func (e *executor) buildStage(ctx context.Context, stage recipe.Stage, index int, platform, output string, named map[string]stageContainer) error {
	label := recipe.StageLabel(stage.Name, index)
	slog.Info(fmt.Sprintf("building stage %s", label), "platform", platform)
	start := time.Now()

	src, err := stage.ParseFrom()
	if err != nil {
		return err
	}

	id := e.containerID(stage.Name, index, platform)
	ctr, err := e.start(ctx, src, id, platform)
	if err != nil {
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	e.containers = append(e.containers, ctr)
	if stage.Name != "" {
		named[stage.Name] = ctr
	}

	if err := executeSteps(ctx, ctr, stage.Steps, newStepState(), e.context, named); err != nil {
		return err
	}

	if !stage.Transient {
		if err := ctr.Stop(ctx); err != nil {
			return fault.Wrap(runtime.ErrRuntime, err)
		}

		archive, err := ctr.Export(ctx, output, e.export)
		if err != nil {
			return fault.Wrap(runtime.ErrRuntime, err)
		}
		e.archives = append(e.archives, archive)
		e.exported = append(e.exported, platform)
	}

	slog.Debug("stage complete", "stage", label, "platform", platform, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Destroys all stage containers.
func (e *executor) destroyContainers(ctx context.Context) {
	for _, ctr := range e.containers {
		ctr.Destroy(ctx)
	}
}

// Removes archives written by this run.
func (e *executor) discardArchives() {
	for _, path := range e.archives {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove partial archive", "path", path, "error", err)
		}
	}
	e.archives = nil
	e.exported = nil
}

// Returns a container ID for a stage, scoped to this resource and platform.
func (e *executor) containerID(name string, index int, platform string) string {
	slug := platformSlug(platform)
	if name != "" {
		return fmt.Sprintf("%s-%s-stage-%s", e.resource, slug, name)
	}
	return fmt.Sprintf("%s-%s-stage-%d", e.resource, slug, index+1)
}

// Returns the output directory for a specific platform.
//
// Single-platform builds write directly to the output directory; with
// several platforms each gets a subdirectory (e.g., {output}/linux-amd64).
func (e *executor) platformOutput(platform string) string {
	if len(e.platforms) == 1 {
		return e.output
	}
	return filepath.Join(e.output, platformSlug(platform))
}

// Converts a platform string to a filesystem-safe slug.
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}
