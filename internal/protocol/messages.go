package protocol

import (
	"github.com/cruciblehq/fishbowl/internal/publish"
	"github.com/cruciblehq/fishbowl/internal/uci"
	"github.com/cruciblehq/fishbowl/internal/verify"
)

// Builds a runtime image. Empty fields fall back to the daemon's
// configuration.
type BuildRequest struct {
	Arch      string   `json:"arch,omitempty"`       // Architecture profile.
	Version   string   `json:"version,omitempty"`    // Engine version label.
	SourceURL string   `json:"source_url,omitempty"` // Source tarball.
	SourceDir string   `json:"source_dir,omitempty"` // Local source tree, absolute.
	Recipe    string   `json:"recipe,omitempty"`     // Custom recipe file replacing the composed one.
	Root      string   `json:"root,omitempty"`       // Context for relative host copies.
	Output    string   `json:"output,omitempty"`     // Output directory.
	Platforms []string `json:"platforms,omitempty"`  // Target platforms.
	Verify    *bool    `json:"verify,omitempty"`     // Overrides the configured verification.
	Publish   bool     `json:"publish,omitempty"`    // Upload the archive after a successful build.
}

// Result of a successful build.
type BuildResult struct {
	RunID        string           `json:"run_id"`
	Arch         string           `json:"arch"`
	Archives     []string         `json:"archives"`
	Elapsed      string           `json:"elapsed"`
	Verification *verify.Report   `json:"verification,omitempty"`
	Published    []publish.Object `json:"published,omitempty"`
}

// Starts the idle runtime container from an exported archive.
type UpRequest struct {
	Name    string `json:"name,omitempty"`    // Container name.
	Arch    string `json:"arch,omitempty"`    // Selects the archive under the output directory.
	Archive string `json:"archive,omitempty"` // Explicit archive path, overrides Arch.
}

// Describes a started runtime container.
type UpResult struct {
	Name   string `json:"name"`
	Image  string `json:"image"`
	Arch   string `json:"arch,omitempty"`
	Binary string `json:"binary"`
}

// Names a runtime container.
type ContainerRequest struct {
	Name string `json:"name,omitempty"`
}

// Readiness of a runtime container.
type ReadyResult struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

// Asks the engine in a runtime container for a move or evaluation.
type EngineRequest struct {
	Name string `json:"name,omitempty"`
	uci.Request
}

// Output of the engine's build description.
type ProbeResult struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

// Daemon status.
type StatusResult struct {
	Running     bool   `json:"running"`
	Version     string `json:"version"`
	Pid         int    `json:"pid"`
	Uptime      string `json:"uptime"`
	Builds      int    `json:"builds"`
	Invocations int    `json:"invocations"`
}

// Payload of an error response.
type ErrorResult struct {
	Message string `json:"message"`
}
