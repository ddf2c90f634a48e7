// Package verify checks a freshly built runtime image against the
// properties the pipeline promises: the container stays idle, the engine
// reports the requested architecture, no build tool is present, and the
// binary carries no symbols.
package verify

import (
	"archive/tar"
	"context"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/runtime"
	"github.com/cruciblehq/fishbowl/internal/uci"
)

var ErrVerification = errors.New("verification failed")

// Build tools that must not resolve inside a runtime image.
var DefaultTools = []string{"cc", "gcc", "g++", "make", "wget", "strip", "nm"}

// Operations needed from a running runtime container.
type Container interface {
	uci.Execer
	Status(ctx context.Context) (runtime.ContainerState, error)
	LookPath(ctx context.Context, names ...string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
	CopyFrom(ctx context.Context, w io.Writer, path string) error
}

// What the image is expected to look like.
type Expect struct {
	Arch   string   // Architecture profile the engine must report.
	Binary string   // Absolute path of the engine binary.
	Tools  []string // Commands that must be absent. Defaults to DefaultTools.
}

// Outcome of a single property check.
type Property struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Outcome of a verification run.
type Report struct {
	Properties []Property `json:"properties"`
}

// Reports whether every property passed.
func (r *Report) Passed() bool {
	for _, p := range r.Properties {
		if !p.Passed {
			return false
		}
	}
	return true
}

// Joins the failed properties into one error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, p := range r.Properties {
		if !p.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", p.Name, p.Detail))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fault.Wrap(ErrVerification, errors.Join(errs...))
}

func (r *Report) add(name string, passed bool, detail string) {
	r.Properties = append(r.Properties, Property{Name: name, Passed: passed, Detail: detail})
	if passed {
		slog.Debug("property passed", "property", name)
	} else {
		slog.Warn("property failed", "property", name, "detail", detail)
	}
}

// Checks a running runtime container.
//
// Every property is checked even after a failure. The returned error is
// non-nil only when a check could not be carried out; failed properties are
// recorded in the report and surfaced by [Report.Err].
func Check(ctx context.Context, ctr Container, expect Expect) (*Report, error) {
	if len(expect.Tools) == 0 {
		expect.Tools = DefaultTools
	}

	report := &Report{}

	state, err := ctr.Status(ctx)
	if err != nil {
		return nil, err
	}
	report.add("idle", state == runtime.ContainerRunning, fmt.Sprintf("container is %s", state))
	if state != runtime.ContainerRunning {
		return report, nil
	}

	exists, err := ctr.Exists(ctx, expect.Binary)
	if err != nil {
		return nil, err
	}
	report.add("binary", exists, fmt.Sprintf("%s not found", expect.Binary))
	if !exists {
		return report, nil
	}

	out, err := uci.NewSession(ctr, expect.Binary).Probe(ctx)
	if err != nil {
		report.add("arch", false, err.Error())
	} else {
		report.add("arch", mentionsArch(out, expect.Arch), fmt.Sprintf("engine build does not report %q", expect.Arch))
	}

	stripped, detail, err := checkStripped(ctx, ctr, expect.Binary)
	if err != nil {
		return nil, err
	}
	report.add("stripped", stripped, detail)

	found, err := ctr.LookPath(ctx, expect.Tools...)
	if err != nil {
		return nil, err
	}
	report.add("no-build-tools", len(found) == 0, fmt.Sprintf("found %s", strings.Join(found, ", ")))

	return report, nil
}

// Reports whether the engine's build description names arch as a whole
// token, so "x86-64" does not match "x86-64-avx2".
func mentionsArch(out, arch string) bool {
	if arch == "" {
		return true
	}
	fields := strings.FieldsFunc(out, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ':' || r == ',' || r == '(' || r == ')'
	})
	for _, f := range fields {
		if f == arch {
			return true
		}
	}
	return false
}

// Sections whose presence means the binary was not stripped.
var symbolSections = []string{".symtab", ".debug_info", ".debug_line"}

// Copies the binary out of the container and inspects its ELF sections.
func checkStripped(ctx context.Context, ctr Container, binary string) (bool, string, error) {
	f, err := os.CreateTemp("", "fishbowl-verify-*")
	if err != nil {
		return false, "", err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := ctr.CopyFrom(ctx, pw, binary)
		pw.CloseWithError(err)
		errc <- err
	}()

	tr := tar.NewReader(pr)
	if _, err := tr.Next(); err != nil {
		pr.CloseWithError(err)
		<-errc
		return false, "", err
	}
	if _, err := io.Copy(f, tr); err != nil {
		pr.CloseWithError(err)
		<-errc
		return false, "", err
	}
	io.Copy(io.Discard, pr)
	if err := <-errc; err != nil {
		return false, "", err
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		return false, fmt.Sprintf("not an ELF binary: %v", err), nil
	}
	defer ef.Close()

	var present []string
	for _, name := range symbolSections {
		if ef.Section(name) != nil {
			present = append(present, name)
		}
	}
	return len(present) == 0, fmt.Sprintf("binary has %s", strings.Join(present, ", ")), nil
}
