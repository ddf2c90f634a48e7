// Package build executes recipes against the container runtime.
//
// A recipe is an ordered sequence of stages, each backed by an idle
// container created from a base image. The executor starts a container for
// each stage, dispatches its steps (shell commands, file copies, and
// cross-stage transfers), and exports the single non-transient stage as an
// OCI archive. Transient stages are never exported; their containers, like
// every other stage container, are destroyed when the run ends, whether it
// succeeded or not. Multi-platform builds repeat the pipeline per platform,
// writing each result to a platform-specific output directory.
//
// Step state (environment variables, working directory, shell) accumulates
// across steps within a stage and is reset between stages. Any failing step
// aborts the whole run; nothing is retried and no partial image is written.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Recipe:   r,
//	    Resource: "fishbowl-3f2a",
//	    Output:   "dist",
//	    Root:     ".",
//	    Export:   runtime.ExportOptions{Entrypoint: []string{"sleep", "infinity"}},
//	})
//	if err != nil {
//	    return err
//	}
package build
