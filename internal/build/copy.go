package build

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/recipe"
)

// Executes a copy operation, transferring files into the container.
//
// The copy string is "src dest" for host copies or "stage:src dest" for
// cross-stage copies. Host sources are resolved relative to the build
// context; cross-stage sources are read from a named stage container.
func executeCopy(ctx context.Context, ctr stageContainer, copyStr, workdir, buildCtx string, stages map[string]stageContainer) error {
	src, dest, err := parseCopy(copyStr, workdir)
	if err != nil {
		return fault.Wrap(ErrCopy, err)
	}

	if destDir := filepath.Dir(dest); destDir != "" {
		if err := ctr.MkdirAll(ctx, destDir); err != nil {
			return fault.Wrap(ErrCopy, err)
		}
	}

	if stage, path, ok := recipe.SplitStageCopy(src); ok {
		return executeStageCopy(ctx, ctr, stages, stage, path, dest)
	}

	return executeHostCopy(ctx, ctr, src, dest, buildCtx)
}

// Copies a file or directory from the host into the container.
func executeHostCopy(ctx context.Context, ctr stageContainer, src, dest, buildCtx string) error {
	if !filepath.IsAbs(src) {
		src = filepath.Join(buildCtx, src)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fault.Wrap(ErrCopy, err)
	}

	slog.Debug("copy", "src", src, "dest", dest, "dir", info.IsDir())

	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		var writeErr error

		if info.IsDir() {
			writeErr = writeDirToTar(tw, src, filepath.Base(dest))
		} else {
			writeErr = writeFileToTar(tw, src, filepath.Base(dest))
		}

		if closeErr := tw.Close(); writeErr == nil {
			writeErr = closeErr
		}
		pw.CloseWithError(writeErr)
	}()

	if err := ctr.CopyTo(ctx, pr, filepath.Dir(dest)); err != nil {
		pr.CloseWithError(err)
		return fault.Wrap(ErrCopy, err)
	}

	return nil
}

// Copies a path from a named stage container into the target container.
//
// The source must exist; a missing path fails with [ErrArtifactMissing]
// before any data moves. The tar stream is piped from the source
// container's CopyFrom straight into the target's CopyTo. Only the base
// name of the source is renamed to the base name of dest.
func executeStageCopy(ctx context.Context, ctr stageContainer, stages map[string]stageContainer, stage, path, dest string) error {
	srcCtr, ok := stages[stage]
	if !ok {
		return fault.Wrapf(ErrCopy, "unknown stage %q", stage)
	}

	exists, err := srcCtr.Exists(ctx, path)
	if err != nil {
		return fault.Wrap(ErrCopy, err)
	}
	if !exists {
		return fault.Wrapf(ErrArtifactMissing, "%s:%s", stage, path)
	}

	slog.Debug("cross-stage copy", "stage", stage, "src", path, "dest", dest)

	pr, pw := io.Pipe()

	errc := make(chan error, 1)
	go func() {
		err := srcCtr.CopyFrom(ctx, pw, path)
		pw.CloseWithError(err)
		errc <- err
	}()

	renamed := renameTar(pr, filepath.Base(path), filepath.Base(dest))

	if err := ctr.CopyTo(ctx, renamed, filepath.Dir(dest)); err != nil {
		renamed.CloseWithError(err)
		pr.CloseWithError(err)
		<-errc
		return fault.Wrap(ErrCopy, err)
	}

	if err := <-errc; err != nil {
		return fault.Wrap(ErrCopy, err)
	}

	return nil
}

// Parses a copy string into source and destination paths.
//
// The string must contain exactly two whitespace-separated tokens. A relative
// dest is joined with workdir.
func parseCopy(s, workdir string) (src, dest string, err error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected source and destination, got %q", s)
	}

	src = parts[0]
	dest = parts[1]

	if !filepath.IsAbs(dest) {
		if workdir == "" {
			return "", "", fmt.Errorf("relative dest %q requires workdir", dest)
		}
		dest = filepath.Join(workdir, dest)
	}

	return src, dest, nil
}

// Rewrites the root entry of a tar stream from one name to another.
//
// Entries named from, or nested under from/, are moved under to. Other
// entries pass through unchanged. Closing the returned reader stops the
// rewrite.
func renameTar(r io.Reader, from, to string) *io.PipeReader {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(rewriteTar(r, pw, from, to))
	}()
	return pr
}

func rewriteTar(r io.Reader, w io.Writer, from, to string) error {
	tr := tar.NewReader(r)
	tw := tar.NewWriter(w)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			// tar pads its output to a full record; the source only exits
			// once the padding is consumed.
			if _, err := io.Copy(io.Discard, r); err != nil {
				return err
			}
			return tw.Close()
		}
		if err != nil {
			return err
		}

		header.Name = renameEntry(header.Name, from, to)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return err
		}
	}
}

// Renames a single archive entry path.
func renameEntry(name, from, to string) string {
	if from == to {
		return name
	}
	trimmed := strings.TrimPrefix(name, "./")
	switch {
	case trimmed == from || trimmed == from+"/":
		return to + strings.TrimPrefix(trimmed, from)
	case strings.HasPrefix(trimmed, from+"/"):
		return to + "/" + strings.TrimPrefix(trimmed, from+"/")
	default:
		return name
	}
}

// Writes a single file to a tar writer with the given archive name.
func writeFileToTar(tw *tar.Writer, hostPath, name string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Writes a directory tree to a tar writer rooted at the given archive prefix.
func writeDirToTar(tw *tar.Writer, hostDir, prefix string) error {
	return filepath.WalkDir(hostDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}

		archivePath := filepath.ToSlash(filepath.Join(prefix, relPath))
		return writeTarEntry(tw, path, archivePath, d)
	})
}

// Writes a single file or directory entry to a tar writer.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = archivePath

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}
