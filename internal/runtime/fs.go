package runtime

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/cruciblehq/fishbowl/internal/fault"
)

// Creates a directory inside the container, including parents.
func (c *Container) MkdirAll(ctx context.Context, path string) error {
	return c.mustExec(ctx, "mkdir", nil, nil, "mkdir", "-p", path)
}

// Reports whether anything exists at path inside the container.
func (c *Container) Exists(ctx context.Context, path string) (bool, error) {
	code, _, err := c.execCommand(ctx, nil, nil, nil, "", "test", "-e", path)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// Resolves command names against the container's PATH.
//
// Returns the names that resolve, in the order given. Resolution uses the
// shell builtin "command -v", so it works in images without a which(1).
func (c *Container) LookPath(ctx context.Context, names ...string) ([]string, error) {
	var found []string
	for _, name := range names {
		code, _, err := c.execCommand(ctx, nil, nil, nil, "", "/bin/sh", "-c", `command -v "$0" >/dev/null 2>&1`, name)
		if err != nil {
			return nil, err
		}
		if code == 0 {
			found = append(found, name)
		}
	}
	return found, nil
}

// Extracts a tar stream into destDir inside the container.
func (c *Container) CopyTo(ctx context.Context, r io.Reader, destDir string) error {
	return c.mustExec(ctx, "tar extract", r, nil, "tar", "xf", "-", "-C", destDir)
}

// Streams the file or directory at path out of the container as a tar
// archive whose single root entry is the base name of path.
func (c *Container) CopyFrom(ctx context.Context, w io.Writer, path string) error {
	return c.mustExec(ctx, "tar archive", nil, w, "tar", "cf", "-", "-C", filepath.Dir(path), filepath.Base(path))
}

// Runs a command and turns a non-zero exit into an error mentioning desc.
func (c *Container) mustExec(ctx context.Context, desc string, stdin io.Reader, stdout io.Writer, args ...string) error {
	exitCode, stderr, err := c.execCommand(ctx, stdin, stdout, nil, "", args...)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fault.Wrapf(ErrRuntime, "%s failed with exit code %d (%s)", desc, exitCode, strings.TrimSpace(stderr))
	}
	return nil
}
