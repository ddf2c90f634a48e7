// Package pipeline composes the two-stage engine build as a recipe.
//
// The recipe is assembled by a chain of pure stage functions. Each takes an
// immutable [Descriptor] and returns a new one:
//
//	idle(assemble(strip(compile(selectArch(provision(empty))))))
//
// provision creates the transient build stage with a compiler toolchain, a
// certificate store, a fetch tool, and the engine source. selectArch sets
// the architecture profile in the build environment without interpreting
// it. compile prepares network resources and runs the engine's own build
// system in parallel. strip removes symbols and refuses to continue if any
// remain. assemble creates a fresh runtime stage that installs only the
// certificate store and copies the single stripped binary across. idle sets
// the image entrypoint to a process that waits forever.
//
// The build stage is transient, so the runtime stage is the only one the
// build package exports.
//
//	d := pipeline.Compose(opts)
//	result, err := build.Run(ctx, rt, build.Options{
//	    Recipe: d.Recipe(),
//	    Export: d.Export(),
//	})
package pipeline
