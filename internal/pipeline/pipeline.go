package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/cruciblehq/fishbowl/internal/recipe"
)

// Image labels recorded on the runtime image.
const (
	LabelArch    = "io.fishbowl.arch"
	LabelVersion = "io.fishbowl.engine.version"
	LabelBinary  = "io.fishbowl.binary"
)

// Entrypoint of the runtime image. It waits forever and never runs the
// engine itself.
var IdleEntrypoint = []string{"sleep", "infinity"}

// A pure transformation of a [Descriptor].
type StageFunc func(Descriptor) Descriptor

// Returns the pipeline stages in execution order.
func Stages(opts Options) []StageFunc {
	opts = opts.WithDefaults()
	return []StageFunc{
		provision(opts),
		selectArch(opts),
		compile(opts),
		strip(opts),
		assemble(opts),
		idle(opts),
	}
}

// Applies every pipeline stage, in order, to an empty descriptor.
func Compose(opts Options) Descriptor {
	var d Descriptor
	for _, stage := range Stages(opts) {
		d = stage(d)
	}
	return d
}

// Directory of the engine makefile inside the build stage.
func buildDir() string {
	return path.Join(SourceRoot, "src")
}

// Path of the compiled executable inside the build stage.
func artifactPath(opts Options) string {
	return path.Join(buildDir(), opts.Executable)
}

// Creates the transient build stage: toolchain, certificates, fetch tool,
// and the engine source under [SourceRoot].
func provision(opts Options) StageFunc {
	return func(d Descriptor) Descriptor {
		steps := []recipe.Step{
			{Env: map[string]string{"DEBIAN_FRONTEND": "noninteractive"}},
			{Run: aptInstall(opts.BuildPackages)},
		}

		if opts.SourceDir != "" {
			steps = append(steps, recipe.Step{Copy: opts.SourceDir + " " + SourceRoot})
		} else {
			steps = append(steps, recipe.Step{
				Shell: "/bin/bash",
				Run: fmt.Sprintf("set -o pipefail; mkdir -p %[1]s && wget -qO- %[2]s | tar xz --strip-components=1 -C %[1]s",
					SourceRoot, shellQuote(opts.SourceURL)),
			})
		}

		d = d.withStage(recipe.Stage{
			Name:      BuildStage,
			From:      opts.BuildBase,
			Transient: true,
			Steps:     steps,
		})
		if opts.Version != "" {
			d = d.withLabel(LabelVersion, opts.Version)
		}
		return d
	}
}

// Places the architecture profile in the build environment. The value is
// passed through untouched.
func selectArch(opts Options) StageFunc {
	return func(d Descriptor) Descriptor {
		return d.
			withSteps(BuildStage, recipe.Step{Env: map[string]string{"ARCH": opts.Arch}}).
			withLabel(LabelArch, opts.Arch)
	}
}

// Prepares network resources, then builds with one job per compute unit.
func compile(opts Options) StageFunc {
	return func(d Descriptor) Descriptor {
		return d.withSteps(BuildStage,
			recipe.Step{Workdir: buildDir()},
			recipe.Step{Run: "make net"},
			recipe.Step{Run: `make -j"$(nproc)" all ARCH="$ARCH"`},
		)
	}
}

// Strips the executable in place and fails if any symbol survives.
func strip(opts Options) StageFunc {
	return func(d Descriptor) Descriptor {
		exe := shellQuote(opts.Executable)
		return d.withSteps(BuildStage,
			recipe.Step{Run: "strip " + exe},
			recipe.Step{Run: fmt.Sprintf(`test -z "$(nm %s 2>/dev/null)"`, exe)},
		)
	}
}

// Creates the runtime stage from a fresh base and copies the single
// artifact across.
func assemble(opts Options) StageFunc {
	return func(d Descriptor) Descriptor {
		return d.withStage(recipe.Stage{
			Name: RuntimeStage,
			From: opts.RuntimeBase,
			Steps: []recipe.Step{
				{Env: map[string]string{"DEBIAN_FRONTEND": "noninteractive"}},
				{Run: aptInstall(opts.RuntimePackages)},
				{Copy: fmt.Sprintf("%s:%s %s", BuildStage, artifactPath(opts), opts.BinaryPath)},
			},
		}).withLabel(LabelBinary, opts.BinaryPath)
	}
}

// Sets the idle entrypoint.
func idle(opts Options) StageFunc {
	return func(d Descriptor) Descriptor {
		return d.withEntrypoint(IdleEntrypoint...)
	}
}

// Installs packages without prompts or recommends and drops the apt lists.
func aptInstall(packages []string) string {
	quoted := make([]string, len(packages))
	for i, p := range packages {
		quoted[i] = shellQuote(p)
	}
	return "apt-get update && apt-get install -y --no-install-recommends " +
		strings.Join(quoted, " ") +
		" && rm -rf /var/lib/apt/lists/*"
}

// Quotes s for a POSIX shell when it contains anything beyond a safe set.
func shellQuote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_.,/:=+@%") == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
