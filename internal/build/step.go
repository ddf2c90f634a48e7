package build

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/recipe"
)

// Number of trailing stderr lines kept in a command failure.
const stderrTailLines = 20

// Executes a list of steps in order against the stage container.
func executeSteps(ctx context.Context, ctr stageContainer, steps []recipe.Step, state *stepState, buildCtx string, stages map[string]stageContainer) error {
	for i, step := range steps {
		if err := executeStep(ctx, ctr, step, state, buildCtx, stages); err != nil {
			return fault.Wrapf(ErrBuild, "step %d: %w", i+1, err)
		}
	}
	return nil
}

// Dispatches a step to group recursion, operation execution, or a state
// update depending on which fields it sets.
func executeStep(ctx context.Context, ctr stageContainer, step recipe.Step, state *stepState, buildCtx string, stages map[string]stageContainer) error {
	if len(step.Steps) > 0 {
		state.apply(step)
		return executeSteps(ctx, ctr, step.Steps, state, buildCtx, stages)
	}

	if step.Run != "" || step.Copy != "" {
		return executeOperation(ctx, ctr, step, state, buildCtx, stages)
	}

	state.apply(step)
	return nil
}

// Executes a run or copy operation.
//
// Modifiers on the step apply to this operation only; the persistent state
// is left untouched. A run step that exits non-zero fails with the tail of
// its stderr, which is the diagnostic the external tool printed.
func executeOperation(ctx context.Context, ctr stageContainer, step recipe.Step, state *stepState, buildCtx string, stages map[string]stageContainer) error {
	resolved := state.resolve(step)

	if resolved.workdir != "" {
		if err := ctr.MkdirAll(ctx, resolved.workdir); err != nil {
			return err
		}
	}

	switch {
	case step.Run != "":
		slog.Debug("run", "command", step.Run, "shell", resolved.shell, "workdir", resolved.workdir)
		result, err := ctr.Exec(ctx, resolved.shell, step.Run, resolved.environ(), resolved.workdir)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return fault.Wrapf(ErrCommandFailed, "exit code %d: %s", result.ExitCode, tail(result.Stderr, stderrTailLines))
		}

	case step.Copy != "":
		if err := executeCopy(ctx, ctr, step.Copy, resolved.workdir, buildCtx, stages); err != nil {
			return err
		}
	}

	return nil
}

// Returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
