// Package runtime manages images and containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon. Base images are either pulled
// from a registry or imported from OCI archives, unpacked for the target
// platform, and used to create containers with fresh snapshots. Every
// container runs "sleep infinity" as its primary process, so it stays idle
// until commands are executed into it.
//
// Each [Container] wraps that idle task. Commands run as additional exec
// processes, either with captured output or attached to caller-supplied
// streams. Files move in and out as tar streams, and the filesystem state
// can be committed and exported as a new OCI archive with its own
// entrypoint and labels. Containers should be destroyed when no longer
// needed to release their snapshot and task resources.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "fishbowl")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	ctr, err := rt.PullContainer(ctx, "docker.io/library/debian:bookworm-slim", "build-1", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	result, err := ctr.Exec(ctx, "/bin/sh", "echo hello", nil, "")
//	if err != nil {
//	    return err
//	}
package runtime
