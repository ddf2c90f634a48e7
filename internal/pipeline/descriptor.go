package pipeline

import (
	"maps"
	"slices"

	"github.com/cruciblehq/fishbowl/internal/recipe"
	"github.com/cruciblehq/fishbowl/internal/runtime"
)

// An immutable description of the image under construction.
//
// Every method that changes something returns a new value; the receiver and
// anything previously returned from it are never modified.
type Descriptor struct {
	stages     []recipe.Stage
	entrypoint []string
	labels     map[string]string
}

// Returns a deep copy of the stages.
func (d Descriptor) Stages() []recipe.Stage {
	stages := make([]recipe.Stage, len(d.stages))
	for i, s := range d.stages {
		stages[i] = cloneStage(s)
	}
	return stages
}

// Returns the described stages as a recipe.
func (d Descriptor) Recipe() *recipe.Recipe {
	return &recipe.Recipe{Stages: d.Stages()}
}

// Returns the image config applied when the final stage is exported.
func (d Descriptor) Export() runtime.ExportOptions {
	return runtime.ExportOptions{
		Entrypoint: slices.Clone(d.entrypoint),
		Labels:     maps.Clone(d.labels),
		CreatedBy:  "fishbowl assemble ARCH=" + d.labels[LabelArch],
	}
}

// Returns the stage with the given name.
func (d Descriptor) Stage(name string) (recipe.Stage, bool) {
	for _, s := range d.stages {
		if s.Name == name {
			return cloneStage(s), true
		}
	}
	return recipe.Stage{}, false
}

// Returns a descriptor with stage appended.
func (d Descriptor) withStage(stage recipe.Stage) Descriptor {
	d.stages = append(slices.Clip(d.stages), cloneStage(stage))
	return d
}

// Returns a descriptor with steps appended to the named stage. A missing
// stage leaves the descriptor unchanged.
func (d Descriptor) withSteps(name string, steps ...recipe.Step) Descriptor {
	stages := slices.Clone(d.stages)
	for i := range stages {
		if stages[i].Name != name {
			continue
		}
		s := cloneStage(stages[i])
		for _, step := range steps {
			s.Steps = append(s.Steps, cloneStep(step))
		}
		stages[i] = s
	}
	d.stages = stages
	return d
}

func (d Descriptor) withEntrypoint(args ...string) Descriptor {
	d.entrypoint = slices.Clone(args)
	return d
}

func (d Descriptor) withLabel(key, value string) Descriptor {
	labels := maps.Clone(d.labels)
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[key] = value
	d.labels = labels
	return d
}

func cloneStage(s recipe.Stage) recipe.Stage {
	steps := make([]recipe.Step, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = cloneStep(step)
	}
	s.Steps = steps
	return s
}

func cloneStep(s recipe.Step) recipe.Step {
	s.Env = maps.Clone(s.Env)
	if s.Steps != nil {
		children := make([]recipe.Step, len(s.Steps))
		for i, child := range s.Steps {
			children[i] = cloneStep(child)
		}
		s.Steps = children
	}
	return s
}
