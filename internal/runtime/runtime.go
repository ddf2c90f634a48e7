package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/cruciblehq/fishbowl/internal/fault"
)

const (

	// Default snapshotter. fuse-overlayfs provides overlay semantics without
	// mount(2), so fishbowl can drive a rootless containerd.
	DefaultSnapshotter = "fuse-overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Configures a [Runtime].
type Option func(*Runtime)

// Selects the snapshotter used for unpacking images and creating containers.
func WithSnapshotter(name string) Option {
	return func(rt *Runtime) {
		if name != "" {
			rt.snapshotter = name
		}
	}
}

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client      *containerd.Client // Containerd client for managing containers and images.
	snapshotter string             // Snapshotter for image unpacking and container snapshots.
}

// Creates a runtime connected to the containerd socket at the given address.
//
// The namespace scopes all containerd operations to a single tenant. The
// runtime must be closed when no longer needed.
func New(address, namespace string, opts ...Option) (*Runtime, error) {
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	rt := &Runtime{client: client, snapshotter: DefaultSnapshotter}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Imports an OCI archive, unpacks it for the target platform, and starts
// a container.
//
// The archive is imported into containerd's content store and tagged with
// a deterministic name derived from the path. Building for a platform other
// than the host requires QEMU / binfmt_misc support in the kernel.
func (rt *Runtime) StartContainer(ctx context.Context, path, id, platform string) (*Container, error) {
	tag := imageTag(path)

	source, err := rt.importArchive(ctx, path)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	if err := rt.tagImage(ctx, source, tag); err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	if err := rt.unpackImage(ctx, tag, platform); err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	return rt.startFrom(ctx, tag, id, platform)
}

// Pulls a registry reference for the target platform and starts a container.
//
// The image is stored under its own reference and unpacked into the
// snapshotter as part of the pull. Repeated pulls of an unchanged reference
// reuse the content already in the store.
func (rt *Runtime) PullContainer(ctx context.Context, ref, id, platform string) (*Container, error) {
	slog.Info("pulling image", "ref", ref, "platform", platform)

	if _, err := rt.client.Pull(ctx, ref,
		containerd.WithPlatform(platform),
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(rt.snapshotter),
	); err != nil {
		return nil, fault.Wrapf(ErrRuntime, "pull %s: %w", ref, err)
	}

	return rt.startFrom(ctx, ref, id, platform)
}

// Creates a container from a tagged, unpacked image and starts its idle task.
//
// Any existing container with the same ID is removed first.
func (rt *Runtime) startFrom(ctx context.Context, tag, id, platform string) (*Container, error) {
	c := rt.newContainer(id, platform)

	// Remove any stale container from a previous run with the same ID.
	c.remove(ctx)

	image, err := rt.resolveImage(ctx, tag, platform)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	ctr, err := c.create(ctx, image)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fault.Wrap(ErrRuntime, err)
	}

	slog.Debug("container started", "id", id, "image", tag, "platform", platform)
	return c, nil
}

// Imports an OCI archive into the content store.
//
// The archive must contain exactly one image. Multi-platform archives
// (single OCI index with per-platform manifests) are supported.
func (rt *Runtime) importArchive(ctx context.Context, path string) (images.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return images.Image{}, err
	}
	defer fh.Close()

	imported, err := rt.client.Import(ctx, fh)
	if err != nil {
		return images.Image{}, err
	}

	// One record per entry in the archive's index.json; platform selection
	// happens later in resolveImage.
	if len(imported) == 0 {
		return images.Image{}, ErrEmptyArchive
	} else if len(imported) > 1 {
		return images.Image{}, ErrMultipleImages
	}

	return imported[0], nil
}

// Tags an imported image under a deterministic name.
//
// Updates the tag if it already exists. Removes the source record when
// its name differs from the tag to avoid duplicates.
func (rt *Runtime) tagImage(ctx context.Context, source images.Image, tag string) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: source.Target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	if source.Name != tag {
		_ = is.Delete(ctx, source.Name)
	}

	return nil
}

// Unpacks the image layers for the target platform into the snapshotter.
func (rt *Runtime) unpackImage(ctx context.Context, tag, platform string) error {
	image, err := rt.resolveImage(ctx, tag, platform)
	if err != nil {
		return err
	}

	return image.Unpack(ctx, rt.snapshotter)
}

// Looks up a tagged image and selects the manifest for the given platform.
func (rt *Runtime) resolveImage(ctx context.Context, tag, platform string) (containerd.Image, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Produces a containerd image tag from an archive path.
//
// The path is hashed so the tag is a valid reference whatever characters
// the path contains.
func imageTag(path string) string {
	h := sha256.Sum256([]byte(path))
	return fmt.Sprintf("import/%s:latest", hex.EncodeToString(h[:]))
}

// Returns the default OCI platform for the host architecture.
func DefaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}

// Imports an OCI archive, tags it under the given name, and unpacks it for
// the host platform.
func (rt *Runtime) ImportImage(ctx context.Context, path, tag string) error {
	source, err := rt.importArchive(ctx, path)
	if err != nil {
		return fault.Wrap(ErrRuntime, err)
	}

	if err := rt.tagImage(ctx, source, tag); err != nil {
		return fault.Wrap(ErrRuntime, err)
	}

	if err := rt.unpackImage(ctx, tag, DefaultPlatform()); err != nil {
		return fault.Wrap(ErrRuntime, err)
	}

	slog.Debug("image imported", "tag", tag)
	return nil
}

// Starts a container from a previously imported image tag on the host
// platform. The container runs detached with its idle task.
func (rt *Runtime) StartFromTag(ctx context.Context, tag, id string) (*Container, error) {
	return rt.startFrom(ctx, tag, id, DefaultPlatform())
}

// Returns the labels recorded in an image's config for the host platform.
func (rt *Runtime) ImageLabels(ctx context.Context, tag string) (map[string]string, error) {
	image, err := rt.resolveImage(ctx, tag, DefaultPlatform())
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	spec, err := image.Spec(ctx)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}
	return spec.Config.Labels, nil
}

// Removes an image and all containers created from it.
//
// Each container's task is killed before the container and its snapshot are
// deleted.
func (rt *Runtime) DestroyImage(ctx context.Context, tag string) error {
	ctrs, err := rt.client.Containers(ctx, fmt.Sprintf("image==%s", tag))
	if err != nil {
		return fault.Wrap(ErrRuntime, err)
	}

	for _, ctr := range ctrs {
		if task, taskErr := ctr.Task(ctx, nil); taskErr == nil {
			task.Kill(ctx, syscall.SIGKILL)
			task.Delete(ctx, containerd.WithProcessKill)
		}
		if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
			return fault.Wrap(ErrRuntime, err)
		}
	}

	if err := rt.client.ImageService().Delete(ctx, tag); err != nil && !errdefs.IsNotFound(err) {
		return fault.Wrap(ErrRuntime, err)
	}

	slog.Debug("image destroyed", "tag", tag)
	return nil
}

// Returns a handle for an existing container on the host platform.
//
// The container is not loaded or verified; it is resolved lazily on
// subsequent calls.
func (rt *Runtime) Container(id string) *Container {
	return rt.newContainer(id, DefaultPlatform())
}

func (rt *Runtime) newContainer(id, platform string) *Container {
	return &Container{
		client:      rt.client,
		id:          id,
		platform:    platform,
		snapshotter: rt.snapshotter,
	}
}
