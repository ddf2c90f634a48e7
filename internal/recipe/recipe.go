package recipe

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"gopkg.in/yaml.v3"
)

// An ordered sequence of build stages.
type Recipe struct {
	Stages []Stage `yaml:"stages"`
}

// A single stage, backed by one container.
type Stage struct {
	Name      string `yaml:"name,omitempty"`      // Name used by cross-stage copies. Optional.
	From      string `yaml:"from"`                // Base image reference or OCI archive path.
	Transient bool   `yaml:"transient,omitempty"` // Transient stages are never exported.
	Steps     []Step `yaml:"steps,omitempty"`     // Steps executed in order.
}

// A build step.
//
// Run and Copy are operations; at most one may be set. Shell, Workdir, and
// Env are modifiers. On an operation they apply to that step only; on their
// own they persist for the rest of the stage. Steps groups children under
// the step's modifiers.
type Step struct {
	Run     string            `yaml:"run,omitempty"`
	Copy    string            `yaml:"copy,omitempty"`
	Shell   string            `yaml:"shell,omitempty"`
	Workdir string            `yaml:"workdir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Steps   []Step            `yaml:"steps,omitempty"`
}

// Reads and validates a recipe from a YAML file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(ErrInvalidRecipe, err)
	}
	return Parse(data)
}

// Decodes and validates a recipe from YAML. Unknown fields are rejected.
func Parse(data []byte) (*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var r Recipe
	if err := dec.Decode(&r); err != nil {
		return nil, fault.Wrap(ErrInvalidRecipe, err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Encodes the recipe as YAML.
func (r *Recipe) Marshal() ([]byte, error) {
	return yaml.Marshal(r)
}

// Checks the structural rules of a recipe.
//
// A recipe needs at least one stage and exactly one non-transient stage.
// Stage names must be unique. Every stage needs a parseable source. Steps
// may not carry both run and copy, and a cross-stage copy must name a stage
// declared earlier in the recipe.
func (r *Recipe) Validate() error {
	if len(r.Stages) == 0 {
		return fault.Wrapf(ErrInvalidRecipe, "no stages")
	}

	seen := make(map[string]bool, len(r.Stages))
	final := 0

	for i, stage := range r.Stages {
		label := StageLabel(stage.Name, i)

		if _, err := stage.ParseFrom(); err != nil {
			return fault.Wrapf(ErrInvalidRecipe, "stage %s: %w", label, err)
		}

		if err := validateSteps(stage.Steps, seen); err != nil {
			return fault.Wrapf(ErrInvalidRecipe, "stage %s: %w", label, err)
		}

		if stage.Name != "" {
			if seen[stage.Name] {
				return fault.Wrapf(ErrInvalidRecipe, "duplicate stage name %q", stage.Name)
			}
			seen[stage.Name] = true
		}

		if !stage.Transient {
			final++
		}
	}

	if final != 1 {
		return fault.Wrapf(ErrInvalidRecipe, "expected exactly one non-transient stage, found %d", final)
	}

	return nil
}

// Returns the non-transient stage. The recipe must be valid.
func (r *Recipe) Final() Stage {
	for _, s := range r.Stages {
		if !s.Transient {
			return s
		}
	}
	return Stage{}
}

// Validates a step list against the stage names declared so far.
func validateSteps(steps []Step, earlier map[string]bool) error {
	for i, step := range steps {
		if step.Run != "" && step.Copy != "" {
			return fmt.Errorf("step %d: run and copy are mutually exclusive", i+1)
		}

		if step.Copy != "" {
			fields := strings.Fields(step.Copy)
			if len(fields) != 2 {
				return fmt.Errorf("step %d: copy expects source and destination, got %q", i+1, step.Copy)
			}
			if stage, _, ok := SplitStageCopy(fields[0]); ok && !earlier[stage] {
				return fmt.Errorf("step %d: copy references unknown stage %q", i+1, stage)
			}
		}

		if len(step.Steps) > 0 {
			if step.Run != "" || step.Copy != "" {
				return fmt.Errorf("step %d: a group cannot also be an operation", i+1)
			}
			if err := validateSteps(step.Steps, earlier); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// Parses a cross-stage copy source of the form "stage:path".
//
// Returns false for regular host paths, including paths where the colon
// follows a path separator (e.g. "/foo:bar").
func SplitStageCopy(src string) (stage, path string, ok bool) {
	i := strings.IndexByte(src, ':')
	if i < 1 {
		return "", "", false
	}

	if strings.ContainsRune(src[:i], '/') {
		return "", "", false
	}

	return src[:i], src[i+1:], true
}

// Returns a label for a stage, preferring the quoted name and falling back
// to the 1-based index.
func StageLabel(name string, index int) string {
	if name != "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("%d", index+1)
}
