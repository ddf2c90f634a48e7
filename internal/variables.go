package internal

import (
	"fmt"
	"runtime"
	"strings"
)

const (

	// Program name, used for the CLI, the log group, and XDG subdirectories.
	Name = "fishbowl"

	// Placeholder for a linker variable that was not set.
	defaultUndefined = "(undefined)"

	// Version string reported by builds made outside the release pipeline.
	defaultLocalBuild = "(local)"

	// Branch whose builds omit the stage suffix in version strings.
	mainBranch = "main"
)

var (
	version   = "" // Release version (e.g., "0.4.1"), set with -ldflags -X.
	stage     = "" // Git branch the release was cut from (e.g., "main").
	gitCommit = "" // Abbreviated commit hash.

	rawQuiet   = "false" // Default for quiet mode.
	rawDebug   = "false" // Default for debug mode.
	rawVerbose = "false" // Default for verbose mode.
	rawJSON    = "false" // Default for JSON log output.
)

// Build metadata reported by the version command and the daemon status.
type BuildInfo struct {
	Version string `json:"version"`
	Stage   string `json:"stage"`
	Commit  string `json:"commit"`
	Arch    string `json:"arch"`
	Local   bool   `json:"local"`
}

// Returns the build metadata of the running binary.
func Info() BuildInfo {
	return BuildInfo{
		Version: Version(),
		Stage:   Stage(),
		Commit:  GitCommit(),
		Arch:    Arch(),
		Local:   IsLocal(),
	}
}

// Returns the release version without a leading "v", or "(undefined)".
func Version() string {
	v := strings.ToLower(strings.TrimSpace(version))
	if v == "" {
		return defaultUndefined
	}
	return strings.TrimPrefix(v, "v")
}

// Returns the lowercased release stage, or "(undefined)".
func Stage() string {
	s := strings.TrimSpace(stage)
	if s == "" {
		return defaultUndefined
	}
	return strings.ToLower(s)
}

// Returns the git commit hash, or "(undefined)".
func GitCommit() string {
	c := strings.TrimSpace(gitCommit)
	if c == "" {
		return defaultUndefined
	}
	return c
}

// Returns the Go architecture fishbowl itself was compiled for.
//
// This is unrelated to the engine architecture profile selected at build
// time, which is a property of the produced image.
func Arch() string {
	return runtime.GOARCH
}

// Reports whether any of version, commit, or stage is missing.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" ||
		strings.TrimSpace(gitCommit) == "" ||
		strings.TrimSpace(stage) == ""
}

// Returns "(local)" for local builds, otherwise
// "<version>[+<stage>] <commit> [<arch>]". The stage suffix is omitted for
// builds from the main branch.
func VersionString() string {
	if IsLocal() {
		return defaultLocalBuild
	}

	s := Stage()
	if s == mainBranch {
		s = ""
	} else {
		s = "+" + s
	}

	return fmt.Sprintf("%s%s %s [%s]", Version(), s, GitCommit(), Arch())
}
