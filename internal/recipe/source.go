package recipe

import (
	"strings"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/distribution/reference"
)

// Identifies where a stage's base image comes from.
type SourceKind int

const (
	SourceRef     SourceKind = iota // Registry reference, pulled by the runtime.
	SourceArchive                   // Local OCI archive, imported by the runtime.
)

// Prefix that forces a stage source to be read as an OCI archive path.
const archivePrefix = "file:"

// A resolved stage base image.
type Source struct {
	Kind  SourceKind
	Value string // Normalized reference or archive path.
}

// Resolves the stage's From field.
//
// Values starting with "file:" or ending in ".tar" are OCI archive paths.
// Anything else must be a registry reference; short names such as
// "debian:bookworm-slim" are expanded to their docker.io form.
func (s Stage) ParseFrom() (Source, error) {
	from := strings.TrimSpace(s.From)
	if from == "" {
		return Source{}, fault.Wrapf(ErrInvalidSource, "empty source")
	}

	if path, ok := strings.CutPrefix(from, archivePrefix); ok {
		if path == "" {
			return Source{}, fault.Wrapf(ErrInvalidSource, "empty archive path")
		}
		return Source{Kind: SourceArchive, Value: path}, nil
	}

	if strings.HasSuffix(from, ".tar") {
		return Source{Kind: SourceArchive, Value: from}, nil
	}

	ref, err := normalizeRef(from)
	if err != nil {
		return Source{}, fault.Wrap(ErrInvalidSource, err)
	}
	return Source{Kind: SourceRef, Value: ref}, nil
}

// Expands a short image name to a fully qualified reference and validates
// it against the reference grammar.
func normalizeRef(s string) (string, error) {
	named, err := reference.ParseDockerRef(s)
	if err != nil {
		return "", err
	}
	return named.String(), nil
}
