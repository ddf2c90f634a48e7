package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/containerd/containerd/v2/core/containers"
	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/core/images/archive"
	"github.com/containerd/containerd/v2/pkg/rootfs"
	"github.com/containerd/platforms"
	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (

	// Filename of the OCI archive produced by Export.
	ExportFilename = "image.tar"

	// History entry recorded for the committed layer when none is given.
	defaultCreatedBy = "fishbowl commit"

	gcRefConfig   = "containerd.io/gc.ref.content.config"
	gcRefLayer    = "containerd.io/gc.ref.content.l.%d"
	gcRefManifest = "containerd.io/gc.ref.content.m.%d"
)

// Image configuration applied to an exported image.
type ExportOptions struct {
	Entrypoint []string          // Replaces the base image entrypoint and clears its cmd when set.
	Labels     map[string]string // Merged into the base image labels.
	CreatedBy  string            // History entry for the committed layer.
}

// Commits the container's filesystem changes as one layer over its base
// image and writes the result to output/image.tar.
//
// The base image record is left untouched. The rewritten manifest, config,
// and index exist only as leased blobs for the duration of the export.
func (c *Container) Export(ctx context.Context, output string, opts ExportOptions) (string, error) {
	loaded, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	info, err := loaded.Info(ctx)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	layer, diffID, err := c.snapshotDiff(ctx, info)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	// The blobs written below are unreferenced until the export finishes.
	ctx, done, err := c.client.WithLease(ctx)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}
	defer done(context.Background())

	target, err := c.exportTarget(ctx, info.Image, func(manifest *ocispec.Manifest, config *ocispec.Image) {
		commitLayer(manifest, config, layer, diffID, opts.CreatedBy, time.Now().UTC())
		applyExportOptions(config, opts)
	})
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	path := filepath.Join(output, ExportFilename)
	if err := c.writeArchive(ctx, target, info.Image, path); err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	slog.Info("image exported", "path", path, "layer", layer.Digest)
	return path, nil
}

// Appends a layer to the manifest and its diff ID and history entry to the
// config.
func commitLayer(manifest *ocispec.Manifest, config *ocispec.Image, layer ocispec.Descriptor, diffID digest.Digest, createdBy string, now time.Time) {
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}

	manifest.Layers = append(manifest.Layers, layer)
	config.RootFS.DiffIDs = append(config.RootFS.DiffIDs, diffID)
	config.History = append(config.History, ocispec.History{
		Created:   &now,
		CreatedBy: createdBy,
	})
	config.Created = &now
}

// Rewrites the image config for export.
//
// A non-empty entrypoint replaces the base entrypoint and drops the base
// cmd, which would otherwise become its arguments.
func applyExportOptions(config *ocispec.Image, opts ExportOptions) {
	if len(opts.Entrypoint) > 0 {
		config.Config.Entrypoint = slices.Clone(opts.Entrypoint)
		config.Config.Cmd = nil
	}
	if len(opts.Labels) > 0 {
		if config.Config.Labels == nil {
			config.Config.Labels = make(map[string]string, len(opts.Labels))
		}
		maps.Copy(config.Config.Labels, opts.Labels)
	}
}

// Returns the layer holding the container's changes and its uncompressed
// digest.
func (c *Container) snapshotDiff(ctx context.Context, info containers.Container) (ocispec.Descriptor, digest.Digest, error) {
	layer, err := rootfs.CreateDiff(ctx,
		info.SnapshotKey,
		c.client.SnapshotService(info.Snapshotter),
		c.client.DiffService(),
	)
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}

	diffID, err := images.GetDiffID(ctx, c.client.ContentStore(), layer)
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}

	return layer, diffID, nil
}

// Writes target to an OCI archive at path, restricted to the container's
// platform. The archive entry is annotated with imageName.
func (c *Container) writeArchive(ctx context.Context, target ocispec.Descriptor, imageName, path string) error {
	p, err := platforms.Parse(c.platform)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return c.client.Export(ctx, f,
		archive.WithManifest(target, imageName),
		archive.WithPlatform(platforms.Only(p)),
	)
}

// Resolves the base image to the container's platform, applies mutate to
// its manifest and config, and returns the descriptor of the rewritten
// root.
//
// An index root is replaced by a single-entry index, since only the
// target platform's layers were fetched.
func (c *Container) exportTarget(ctx context.Context, imageName string, mutate func(*ocispec.Manifest, *ocispec.Image)) (ocispec.Descriptor, error) {
	img, err := c.client.ImageService().Get(ctx, imageName)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	manifestDesc, index, err := c.platformManifest(ctx, img.Target, imageName)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	cs := c.client.ContentStore()

	manifest, err := readJSON[ocispec.Manifest](ctx, cs, manifestDesc)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	config, err := readJSON[ocispec.Image](ctx, cs, manifest.Config)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	mutate(&manifest, &config)

	manifest.Config, err = c.writeBlob(ctx, manifest.Config.MediaType, config, imageName+"-config", nil)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	labels := gcRefLabels(gcRefLayer, manifest.Layers)
	labels[gcRefConfig] = manifest.Config.Digest.String()

	newManifest, err := c.writeBlob(ctx, manifestDesc.MediaType, manifest, imageName+"-manifest", labels)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	if index == nil {
		return newManifest, nil
	}

	index.Manifests = []ocispec.Descriptor{newManifest}
	return c.writeBlob(ctx, img.Target.MediaType, index, imageName+"-index", gcRefLabels(gcRefManifest, index.Manifests))
}

// Returns the manifest for the container's platform and, when root is an
// index, the index it came from.
//
// Index entries without platform metadata (common on Docker Hub) are
// matched through the platform recorded in their image config. When nothing
// matches, the first entry is used.
func (c *Container) platformManifest(ctx context.Context, root ocispec.Descriptor, imageName string) (ocispec.Descriptor, *ocispec.Index, error) {
	if !images.IsIndexType(root.MediaType) {
		return root, nil, nil
	}

	idx, err := readJSON[ocispec.Index](ctx, c.client.ContentStore(), root)
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}
	if len(idx.Manifests) == 0 {
		return ocispec.Descriptor{}, nil, fault.Wrapf(ErrEmptyIndex, "%s", imageName)
	}

	p, err := platforms.Parse(c.platform)
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}
	matcher := platforms.OnlyStrict(p)

	if i := slices.IndexFunc(idx.Manifests, func(m ocispec.Descriptor) bool {
		return m.Platform != nil && matcher.Match(*m.Platform)
	}); i >= 0 {
		return idx.Manifests[i], &idx, nil
	}

	for _, m := range idx.Manifests {
		if m.Platform != nil || !images.IsManifestType(m.MediaType) {
			continue
		}
		if p, ok := c.configPlatform(ctx, m); ok && matcher.Match(p) {
			return m, &idx, nil
		}
	}

	return idx.Manifests[0], &idx, nil
}

// Returns the platform declared in the config of the manifest at desc.
func (c *Container) configPlatform(ctx context.Context, desc ocispec.Descriptor) (ocispec.Platform, bool) {
	cs := c.client.ContentStore()

	manifest, err := readJSON[ocispec.Manifest](ctx, cs, desc)
	if err != nil {
		return ocispec.Platform{}, false
	}
	config, err := readJSON[ocispec.Image](ctx, cs, manifest.Config)
	if err != nil {
		return ocispec.Platform{}, false
	}

	return config.Platform, true
}

// Reads a blob and decodes it as JSON into a T.
func readJSON[T any](ctx context.Context, p content.Provider, desc ocispec.Descriptor) (T, error) {
	var v T
	b, err := content.ReadBlob(ctx, p, desc)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(b, &v)
	return v, err
}

// Stores v as a JSON blob and returns its descriptor.
func (c *Container) writeBlob(ctx context.Context, mediaType string, v any, ref string, labels map[string]string) (ocispec.Descriptor, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(b),
		Size:      int64(len(b)),
	}

	var opts []content.Opt
	if len(labels) > 0 {
		opts = append(opts, content.WithLabels(labels))
	}

	if err := content.WriteBlob(ctx, c.client.ContentStore(), ref, bytes.NewReader(b), desc, opts...); err != nil {
		return ocispec.Descriptor{}, err
	}
	return desc, nil
}

// Returns containerd GC reference labels pointing at each child, so the
// collector can trace reachability from the parent blob. format takes the
// child's index.
func gcRefLabels(format string, children []ocispec.Descriptor) map[string]string {
	labels := make(map[string]string, len(children)+1)
	for i, child := range children {
		labels[fmt.Sprintf(format, i)] = child.Digest.String()
	}
	return labels
}
