package build

import (
	"maps"
	"slices"

	"github.com/cruciblehq/fishbowl/internal/recipe"
)

// Shell for run steps until a step sets another one.
const defaultShell = "/bin/sh"

// Modifiers in effect at a point of a stage: the shell, working directory,
// and environment that run and copy steps see.
//
// A modifier-only step changes the state for the rest of the stage through
// apply. Modifiers on an operation step only affect that step and are
// layered on through resolve.
type stepState struct {
	shell   string
	workdir string
	env     map[string]string
}

func newStepState() *stepState {
	return &stepState{
		shell: defaultShell,
		env:   make(map[string]string),
	}
}

// Applies the step's modifiers to s for the rest of the stage.
func (s *stepState) apply(step recipe.Step) {
	s.overlay(step)
}

// Returns the state seen by a single operation step, leaving s unchanged.
func (s *stepState) resolve(step recipe.Step) *stepState {
	resolved := &stepState{
		shell:   s.shell,
		workdir: s.workdir,
		env:     maps.Clone(s.env),
	}
	resolved.overlay(step)
	return resolved
}

func (s *stepState) overlay(step recipe.Step) {
	if step.Shell != "" {
		s.shell = step.Shell
	}
	if step.Workdir != "" {
		s.workdir = step.Workdir
	}
	if s.env == nil {
		s.env = make(map[string]string, len(step.Env))
	}
	maps.Copy(s.env, step.Env)
}

// Returns the environment as "key=value" entries sorted by key, so two runs
// with the same modifiers exec identical process specs.
func (s *stepState) environ() []string {
	env := make([]string, 0, len(s.env))
	for _, k := range slices.Sorted(maps.Keys(s.env)) {
		env = append(env, k+"="+s.env[k])
	}
	return env
}
