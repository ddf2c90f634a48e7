package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cruciblehq/fishbowl/internal/protocol"
)

// Represents the 'fishbowl build' command.
type BuildCmd struct {
	Arch      string   `short:"a" help:"Architecture profile passed to make as ARCH (e.g. x86-64-avx2, armv8)."`
	Version   string   `help:"Engine version recorded in the image labels."`
	SourceURL string   `name:"source-url" help:"Source tarball to download in the build stage." placeholder:"URL"`
	SourceDir string   `name:"source-dir" help:"Local source tree copied into the build stage." type:"existingdir" placeholder:"DIR"`
	Recipe    string   `help:"Recipe file replacing the composed pipeline." type:"existingfile" placeholder:"FILE"`
	Output    string   `short:"o" help:"Output directory for the exported image." type:"path" placeholder:"DIR"`
	Platform  []string `short:"p" help:"Target platform (repeatable). Defaults to the host platform." placeholder:"OS/ARCH"`
	NoVerify  bool     `name:"no-verify" help:"Skip checking the runtime image after the build."`
	Publish   bool     `help:"Upload the image to the configured object store."`
}

// Executes the build command.
func (c *BuildCmd) Run(ctx context.Context) error {
	req, err := c.request()
	if err != nil {
		return err
	}

	ops, err := connect()
	if err != nil {
		return err
	}
	defer ops.Close()

	result, err := ops.Build(ctx, req)
	if err != nil {
		return err
	}

	return printResult(result, func(w io.Writer) {
		for _, archive := range result.Archives {
			fmt.Fprintln(w, archive)
		}
		for _, obj := range result.Published {
			fmt.Fprintf(w, "s3://%s/%s\n", obj.Bucket, obj.Key)
		}
	})
}

// Translates flags into a build request.
//
// Paths are made absolute so that a daemon running elsewhere resolves them
// the same way.
func (c *BuildCmd) request() (protocol.BuildRequest, error) {
	req := protocol.BuildRequest{
		Arch:      c.Arch,
		Version:   c.Version,
		SourceURL: c.SourceURL,
		Platforms: c.Platform,
		Publish:   c.Publish,
	}

	if c.NoVerify {
		verify := false
		req.Verify = &verify
	}

	for _, p := range []struct {
		src string
		dst *string
	}{
		{c.SourceDir, &req.SourceDir},
		{c.Recipe, &req.Recipe},
		{c.Output, &req.Output},
	} {
		if p.src == "" {
			continue
		}
		abs, err := filepath.Abs(p.src)
		if err != nil {
			return req, err
		}
		*p.dst = abs
	}

	if req.Recipe != "" {
		req.Root = filepath.Dir(req.Recipe)
	}

	return req, nil
}
