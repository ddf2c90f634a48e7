package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/containerd/errdefs"
	"github.com/cruciblehq/fishbowl/internal/config"
	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/pipeline"
	"github.com/cruciblehq/fishbowl/internal/protocol"
	"github.com/cruciblehq/fishbowl/internal/publish"
	"github.com/cruciblehq/fishbowl/internal/runtime"
	"github.com/cruciblehq/fishbowl/internal/uci"
)

// Repository under which runtime images are tagged in containerd.
const imageRepository = "fishbowl.local/engine"

// Runs fishbowl operations against one containerd connection.
type Service struct {
	cfg         *config.Config
	rt          *runtime.Runtime
	publisher   *publish.Publisher
	builds      atomic.Int64
	invocations atomic.Int64
}

// Connects to containerd and prepares the optional publisher.
func New(cfg *config.Config) (*Service, error) {
	rt, err := runtime.New(cfg.Containerd.Address, cfg.Containerd.Namespace,
		runtime.WithSnapshotter(cfg.Containerd.Snapshotter))
	if err != nil {
		return nil, err
	}

	publisher, err := publish.New(cfg.Publish)
	if err != nil {
		rt.Close()
		return nil, err
	}

	return &Service{cfg: cfg, rt: rt, publisher: publisher}, nil
}

// Closes the containerd connection.
func (s *Service) Close() error {
	return s.rt.Close()
}

// Number of successful builds since the service was created.
func (s *Service) Builds() int {
	return int(s.builds.Load())
}

// Number of engine invocations since the service was created.
func (s *Service) Invocations() int {
	return int(s.invocations.Load())
}

// Starts the idle runtime container.
//
// The archive is imported under a tag derived from its architecture
// profile. Any container with the same name is replaced.
func (s *Service) Up(ctx context.Context, req protocol.UpRequest) (*protocol.UpResult, error) {
	name := s.containerName(req.Name)
	arch := req.Arch
	if arch == "" {
		arch = s.cfg.Engine.Arch
	}

	archive := req.Archive
	if archive == "" {
		archive = findArchive(filepath.Join(s.cfg.Output, archDir(arch)), runtime.DefaultPlatform())
	}

	if _, err := os.Stat(archive); err != nil {
		return nil, fault.Wrapf(ErrService, "no runtime image for %s: %w", arch, err)
	}

	tag := imageTag(arch)
	if err := s.rt.ImportImage(ctx, archive, tag); err != nil {
		return nil, err
	}

	if _, err := s.rt.StartFromTag(ctx, tag, name); err != nil {
		return nil, err
	}

	labels, err := s.rt.ImageLabels(ctx, tag)
	if err != nil {
		return nil, err
	}

	result := &protocol.UpResult{
		Name:   name,
		Image:  tag,
		Arch:   labels[pipeline.LabelArch],
		Binary: s.binaryFromLabels(labels),
	}

	slog.Info("engine container started", "name", name, "image", tag, "binary", result.Binary)
	return result, nil
}

// Stops and removes the runtime container. The image is kept.
func (s *Service) Down(ctx context.Context, req protocol.ContainerRequest) error {
	name := s.containerName(req.Name)
	s.rt.Container(name).Destroy(ctx)
	slog.Info("engine container removed", "name", name)
	return nil
}

// Reports whether the runtime container exists and its idle task runs.
func (s *Service) Ready(ctx context.Context, req protocol.ContainerRequest) (*protocol.ReadyResult, error) {
	name := s.containerName(req.Name)

	state, err := s.rt.Container(name).Status(ctx)
	if err != nil {
		return nil, err
	}

	return &protocol.ReadyResult{
		Name:  name,
		Ready: state == runtime.ContainerRunning,
		State: string(state),
	}, nil
}

// Asks the engine for the best move.
func (s *Service) Predict(ctx context.Context, req protocol.EngineRequest) (*uci.Prediction, error) {
	session, err := s.session(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	s.invocations.Add(1)

	prediction, err := session.Predict(ctx, req.Request)
	if err != nil {
		return nil, s.engineFailure(req.Name, err)
	}
	return prediction, nil
}

// Asks the engine for an evaluation.
func (s *Service) Analyze(ctx context.Context, req protocol.EngineRequest) (*uci.Evaluation, error) {
	session, err := s.session(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	s.invocations.Add(1)

	eval, err := session.Analyze(ctx, req.Request)
	if err != nil {
		return nil, s.engineFailure(req.Name, err)
	}
	return eval, nil
}

// Returns the engine's description of its build.
func (s *Service) Probe(ctx context.Context, req protocol.ContainerRequest) (*protocol.ProbeResult, error) {
	session, err := s.session(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	s.invocations.Add(1)

	out, err := session.Probe(ctx)
	if err != nil {
		return nil, s.engineFailure(req.Name, err)
	}
	return &protocol.ProbeResult{Name: s.containerName(req.Name), Output: out}, nil
}

// Opens an engine session on a running container.
//
// The binary path comes from the image labels; images built without them
// fall back to the configured path.
func (s *Service) session(ctx context.Context, name string) (*uci.Session, error) {
	name = s.containerName(name)
	ctr := s.rt.Container(name)

	state, err := ctr.Status(ctx)
	if err != nil {
		return nil, err
	}
	if state != runtime.ContainerRunning {
		return nil, fault.Wrapf(ErrNotReady, "%s is %s", name, state)
	}

	binary := s.cfg.Engine.BinaryPath
	if image, err := ctr.Image(ctx); err == nil {
		if labels, err := s.rt.ImageLabels(ctx, image); err == nil {
			binary = s.binaryFromLabels(labels)
		}
	}

	return uci.NewSession(ctr, binary, uci.WithTimeout(s.cfg.Engine.Timeout)), nil
}

// Reports a container that stopped during an invocation as not ready, so
// callers can tell it apart from an engine that misbehaved.
func (s *Service) engineFailure(name string, err error) error {
	if fault.IsAny(err, runtime.ErrNotRunning, errdefs.ErrNotFound) {
		return fault.Wrapf(ErrNotReady, "%s: %w", s.containerName(name), err)
	}
	return err
}

func (s *Service) containerName(name string) string {
	if name == "" {
		return s.cfg.Container.Name
	}
	return name
}

func (s *Service) binaryFromLabels(labels map[string]string) string {
	if b := labels[pipeline.LabelBinary]; b != "" {
		return b
	}
	return s.cfg.Engine.BinaryPath
}

// Returns the containerd tag for the runtime image of an architecture
// profile.
func imageTag(arch string) string {
	return imageRepository + ":" + sanitizeTag(arch)
}

// Directory below the output root holding the images of an arch profile.
func archDir(arch string) string {
	return sanitizeTag(arch)
}

// Locates the archive to start in an arch profile's output directory.
//
// A single-platform build writes the archive directly to dir; a
// multi-platform build writes one per platform subdirectory, of which
// only the host's can run here. When neither exists the single-platform
// path is returned so the caller reports it.
func findArchive(dir, platform string) string {
	single := filepath.Join(dir, runtime.ExportFilename)
	candidates := []string{
		single,
		filepath.Join(dir, strings.ReplaceAll(platform, "/", "-"), runtime.ExportFilename),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return single
}

// Replaces characters that are not allowed in a reference tag.
func sanitizeTag(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case (r == '.' || r == '-') && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "latest"
	}
	return b.String()
}
