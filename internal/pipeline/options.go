package pipeline

import (
	"path"
	"strings"

	"github.com/cruciblehq/fishbowl/internal/fault"
)

const (
	DefaultArch       = "x86-64"                                  // Widely compatible baseline profile.
	DefaultBase       = "docker.io/library/debian:bookworm-slim" // Base for both stages.
	DefaultExecutable = "stockfish"                               // Name of the engine build output.
	DefaultBinaryDir  = "/usr/local/bin"                          // Runtime image directory for the binary.

	BuildStage   = "build"   // Name of the transient build stage.
	RuntimeStage = "runtime" // Name of the exported runtime stage.

	// Directory the engine source is unpacked into in the build stage. The
	// engine's makefile lives in its src subdirectory.
	SourceRoot = "/src"
)

var (
	DefaultBuildPackages   = []string{"build-essential", "ca-certificates", "wget"}
	DefaultRuntimePackages = []string{"ca-certificates"}
)

// Parameters of a pipeline run.
type Options struct {
	Arch            string   // Architecture profile forwarded to the engine build system.
	Version         string   // Engine version, recorded as an image label.
	SourceURL       string   // Gzipped source tarball, fetched inside the build stage.
	SourceDir       string   // Local source tree copied into the build stage. Wins over SourceURL.
	Executable      string   // Name of the executable produced in the source tree.
	BinaryPath      string   // Absolute path of the binary in the runtime image.
	BuildBase       string   // Base image of the build stage.
	RuntimeBase     string   // Base image of the runtime stage.
	BuildPackages   []string // Packages installed in the build stage.
	RuntimePackages []string // Packages installed in the runtime stage.
}

// Returns a copy of o with every empty field set to its default.
func (o Options) WithDefaults() Options {
	if o.Arch == "" {
		o.Arch = DefaultArch
	}
	if o.Executable == "" {
		o.Executable = DefaultExecutable
	}
	if o.BinaryPath == "" {
		o.BinaryPath = path.Join(DefaultBinaryDir, o.Executable)
	}
	if o.BuildBase == "" {
		o.BuildBase = DefaultBase
	}
	if o.RuntimeBase == "" {
		o.RuntimeBase = DefaultBase
	}
	if len(o.BuildPackages) == 0 {
		o.BuildPackages = DefaultBuildPackages
	}
	if len(o.RuntimePackages) == 0 {
		o.RuntimePackages = DefaultRuntimePackages
	}
	return o
}

// Checks the options after defaults are applied.
//
// The architecture profile is deliberately not checked here; the engine's
// build system rejects unknown values.
func (o Options) Validate() error {
	o = o.WithDefaults()

	if o.SourceURL == "" && o.SourceDir == "" {
		return fault.Wrapf(ErrInvalidOptions, "either a source URL or a source directory is required")
	}
	if strings.ContainsAny(o.Executable, "/ \t") {
		return fault.Wrapf(ErrInvalidOptions, "executable %q must be a plain file name", o.Executable)
	}
	if !path.IsAbs(o.BinaryPath) || strings.ContainsAny(o.BinaryPath, " \t") {
		return fault.Wrapf(ErrInvalidOptions, "binary path %q must be absolute and contain no spaces", o.BinaryPath)
	}
	if strings.ContainsAny(o.SourceDir, " \t") {
		return fault.Wrapf(ErrInvalidOptions, "source directory %q must not contain spaces", o.SourceDir)
	}
	return nil
}
