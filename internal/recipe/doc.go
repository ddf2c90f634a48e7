// Package recipe defines the staged build description executed by the build
// package.
//
// A [Recipe] is an ordered list of stages. Each stage starts from a base
// image (a registry reference or a local OCI archive) and runs a list of
// steps. A step is either an operation (run a shell command, copy files) or
// a modifier (shell, workdir, env) that persists for the rest of the stage.
// Steps may also be grouped; a group applies its modifiers and then runs its
// children.
//
// Transient stages only exist to feed later stages through cross-stage
// copies ("stage:/path dest"). Exactly one stage is not transient; it is the
// one exported as the final image.
//
// Recipes are usually composed in code by the pipeline package, but they can
// also be loaded from YAML:
//
//	stages:
//	  - name: build
//	    from: docker.io/library/debian:bookworm-slim
//	    transient: true
//	    steps:
//	      - run: apt-get update && apt-get install -y build-essential
//	  - name: runtime
//	    from: docker.io/library/debian:bookworm-slim
//	    steps:
//	      - copy: build:/src/app /usr/local/bin/app
package recipe
