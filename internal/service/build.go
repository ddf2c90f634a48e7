package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/cruciblehq/fishbowl/internal/build"
	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/paths"
	"github.com/cruciblehq/fishbowl/internal/pipeline"
	"github.com/cruciblehq/fishbowl/internal/protocol"
	"github.com/cruciblehq/fishbowl/internal/publish"
	"github.com/cruciblehq/fishbowl/internal/recipe"
	"github.com/cruciblehq/fishbowl/internal/runtime"
	"github.com/cruciblehq/fishbowl/internal/verify"
	"github.com/google/uuid"
)

const (

	// Prefix of every container and image created by a build run.
	resourcePrefix = "fishbowl"

	// Prefix of the per-run directory archives are exported into.
	stagingPrefix = ".run-"
)

// A build request resolved against the configuration.
type buildPlan struct {
	runID     string
	resource  string
	options   pipeline.Options
	recipe    *recipe.Recipe
	export    runtime.ExportOptions
	root      string
	output    string // Final directory for this arch profile.
	staging   string // Per-run directory the archives are exported into.
	platforms []string
	verify    bool
	publish   bool
}

// Builds the runtime image for one architecture profile.
//
// Archives are exported into a directory private to the run and moved into
// the output directory only once the run has succeeded, so concurrent runs
// for the same profile never write the same file and a failed run never
// leaves or removes an image there.
func (s *Service) Build(ctx context.Context, req protocol.BuildRequest) (*protocol.BuildResult, error) {
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	defer removeStaging(plan.staging)

	slog.Info("build started", "run", plan.runID, "arch", plan.options.Arch, "output", plan.output)

	result, err := build.Run(ctx, s.rt, build.Options{
		Recipe:    plan.recipe,
		Resource:  plan.resource,
		Output:    plan.staging,
		Root:      plan.root,
		Export:    plan.export,
		Platforms: plan.platforms,
	})
	if err != nil {
		return nil, err
	}

	out := &protocol.BuildResult{
		RunID:   plan.runID,
		Arch:    plan.options.Arch,
		Elapsed: result.Elapsed.Round(time.Millisecond).String(),
	}

	if plan.verify {
		report, err := s.verifyArchives(ctx, plan, result.Archives)
		if err == nil {
			err = report.Err()
		}
		if err != nil {
			return nil, err
		}
		out.Verification = report
	}

	if plan.publish && s.publisher != nil {
		for i, archive := range result.Archives {
			a := publish.Artifact{Path: archive, Arch: plan.options.Arch, Version: plan.options.Version}
			if len(result.Archives) > 1 {
				a.Platform = result.Platforms[i]
			}
			obj, err := s.publisher.Publish(ctx, a)
			if err != nil {
				return nil, err
			}
			out.Published = append(out.Published, *obj)
		}
	} else if plan.publish {
		slog.Warn("publish requested but no endpoint is configured")
	}

	out.Archives, err = promote(plan.staging, plan.output, result.Archives)
	if err != nil {
		return nil, err
	}

	s.builds.Add(1)
	slog.Info("build complete", "run", plan.runID, "arch", plan.options.Arch, "elapsed", out.Elapsed)
	return out, nil
}

// Resolves a request against the configuration.
func (s *Service) plan(req protocol.BuildRequest) (*buildPlan, error) {
	opts := s.cfg.Pipeline()
	if req.Arch != "" {
		opts.Arch = req.Arch
	}
	if req.Version != "" {
		opts.Version = req.Version
	}
	if req.SourceDir != "" {
		opts.SourceDir = req.SourceDir
	}
	if req.SourceURL != "" {
		opts.SourceURL = req.SourceURL
		if req.SourceDir == "" {
			opts.SourceDir = ""
		}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	opts = opts.WithDefaults()
	d := pipeline.Compose(opts)

	verifyBuild := s.cfg.Verify
	if req.Verify != nil {
		verifyBuild = *req.Verify
	}

	r, export := d.Recipe(), d.Export()
	if req.Recipe != "" {
		custom, err := recipe.Load(req.Recipe)
		if err != nil {
			return nil, err
		}

		// A custom recipe decides its own binary and profile, so the
		// composed labels and the checks derived from them do not apply.
		if req.Verify != nil && *req.Verify {
			return nil, fault.Wrapf(ErrService, "verification requires the composed pipeline, not recipe %s", req.Recipe)
		}
		if verifyBuild {
			slog.Info("skipping verification of custom recipe", "recipe", req.Recipe)
		}
		verifyBuild = false

		r = custom
		export = runtime.ExportOptions{
			Entrypoint: slices.Clone(pipeline.IdleEntrypoint),
			CreatedBy:  "fishbowl recipe " + filepath.Base(req.Recipe),
		}
	}

	runID := uuid.NewString()

	root := req.Output
	if root == "" {
		root = s.cfg.Output
	}
	output := filepath.Join(root, archDir(opts.Arch))

	return &buildPlan{
		runID:     runID,
		resource:  resourcePrefix + "-" + runID[:8],
		options:   opts,
		recipe:    r,
		export:    export,
		root:      req.Root,
		output:    output,
		staging:   filepath.Join(output, stagingPrefix+runID[:8]),
		platforms: req.Platforms,
		verify:    verifyBuild,
		publish:   req.Publish,
	}, nil
}

// Starts each host-platform archive in a scratch container and checks it.
//
// Archives for other platforms cannot run here and are skipped.
func (s *Service) verifyArchives(ctx context.Context, plan *buildPlan, archives []string) (*verify.Report, error) {
	host := runtime.DefaultPlatform()
	if len(plan.platforms) > 1 || (len(plan.platforms) == 1 && plan.platforms[0] != host) {
		slog.Warn("skipping verification of cross-platform build", "platforms", plan.platforms, "host", host)
		return &verify.Report{}, nil
	}

	report := &verify.Report{}
	for _, archive := range archives {
		r, err := s.verifyArchive(ctx, plan, archive)
		if err != nil {
			return nil, err
		}
		report.Properties = append(report.Properties, r.Properties...)
	}
	return report, nil
}

func (s *Service) verifyArchive(ctx context.Context, plan *buildPlan, archive string) (*verify.Report, error) {
	tag := imageRepository + "-verify:" + plan.runID
	id := plan.resource + "-verify"

	if err := s.rt.ImportImage(ctx, archive, tag); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.rt.DestroyImage(context.WithoutCancel(ctx), tag); err != nil {
			slog.Warn("failed to remove verification image", "tag", tag, "error", err)
		}
	}()

	ctr, err := s.rt.StartFromTag(ctx, tag, id)
	if err != nil {
		return nil, err
	}
	defer ctr.Destroy(context.WithoutCancel(ctx))

	return verify.Check(ctx, ctr, verify.Expect{
		Arch:   plan.options.Arch,
		Binary: plan.options.BinaryPath,
	})
}

// Moves archives from a run's staging directory into the output
// directory, keeping their layout below it, and returns the new paths.
//
// Each move is a rename within one filesystem, so readers of the output
// directory see either the previous image or the new one.
func promote(staging, output string, archives []string) ([]string, error) {
	promoted := make([]string, 0, len(archives))
	for _, archive := range archives {
		rel, err := filepath.Rel(staging, archive)
		if err != nil {
			return nil, fault.Wrap(ErrService, err)
		}

		dest := filepath.Join(output, rel)
		if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
			return nil, fault.Wrap(ErrService, err)
		}
		if err := os.Rename(archive, dest); err != nil {
			return nil, fault.Wrap(ErrService, err)
		}
		promoted = append(promoted, dest)
	}
	return promoted, nil
}

// Removes a run's staging directory and whatever is left in it.
func removeStaging(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("failed to remove staging directory", "path", dir, "error", err)
	}
}
