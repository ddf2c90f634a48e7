package build

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/paths"
	"github.com/cruciblehq/fishbowl/internal/recipe"
	"github.com/cruciblehq/fishbowl/internal/runtime"
)

// Controls recipe execution.
type Options struct {
	Recipe    *recipe.Recipe        // Recipe to execute.
	Resource  string                // Prefix for container IDs, unique per run.
	Output    string                // Directory for the exported image.
	Root      string                // Build context, for resolving host copy sources.
	Export    runtime.ExportOptions // Image config applied to the exported stage.
	Platforms []string              // Target platforms (e.g., ["linux/amd64"]). Defaults to host.
}

// Returned after successful recipe execution.
type Result struct {
	Output    string        // Directory containing the exported images.
	Archives  []string      // Exported archive paths, one per platform.
	Platforms []string      // Platform of each archive, in the same order.
	Elapsed   time.Duration // Wall time of the run.
}

// Executes a recipe against the container runtime.
//
// The recipe is validated first. Stages are built in declaration order and
// the non-transient stage is exported to the output directory.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	if opts.Recipe == nil {
		return nil, fault.Wrapf(ErrBuild, "no recipe")
	}
	if err := opts.Recipe.Validate(); err != nil {
		return nil, fault.Wrap(ErrBuild, err)
	}
	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{runtime.DefaultPlatform()}
	}

	slog.Info("executing recipe",
		"resource", opts.Resource,
		"output", opts.Output,
		"stages", len(opts.Recipe.Stages),
		"platforms", opts.Platforms,
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fault.Wrap(ErrFileSystemOperation, err)
	}

	start := time.Now()
	result, err := newExecutor(rt, opts).build(ctx, opts.Recipe.Stages)
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	return result, nil
}
