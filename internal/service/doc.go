// Package service implements the operations shared by the fishbowl CLI and
// daemon: building runtime images, starting and stopping the idle engine
// container, and running the engine inside it.
//
// A build composes the two-stage recipe, executes it, and optionally
// verifies and publishes the exported image. A verification failure counts
// as a build failure; the archive is removed and no image is left behind.
//
// Engine requests never run the binary as the container's main process.
// Each request execs a fresh engine process into the idle container.
package service
