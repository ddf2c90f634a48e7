package verify

import (
	"archive/tar"
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/cruciblehq/fishbowl/internal/runtime"
)

// A runtime container with scripted answers.
type fakeContainer struct {
	state    runtime.ContainerState
	compiler string
	tools    []string // Commands that resolve.
	files    map[string][]byte
}

func (f *fakeContainer) Status(ctx context.Context) (runtime.ContainerState, error) {
	return f.state, nil
}

func (f *fakeContainer) LookPath(ctx context.Context, names ...string) ([]string, error) {
	var found []string
	for _, n := range names {
		if slices.Contains(f.tools, n) {
			found = append(found, n)
		}
	}
	return found, nil
}

func (f *fakeContainer) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := f.files[path]
	return ok, nil
}

func (f *fakeContainer) CopyFrom(ctx context.Context, w io.Writer, path string) error {
	data, ok := f.files[path]
	if !ok {
		return fmt.Errorf("%s: no such file", path)
	}
	tw := tar.NewWriter(w)
	if err := tw.WriteHeader(&tar.Header{Name: "stockfish", Mode: 0755, Size: int64(len(data))}); err != nil {
		return err
	}
	if _, err := tw.Write(data); err != nil {
		return err
	}
	return tw.Close()
}

func (f *fakeContainer) ExecStream(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		switch scanner.Text() {
		case "compiler":
			fmt.Fprint(stdout, f.compiler)
		case "quit":
			return 0, nil
		}
	}
	return 0, nil
}

// Returns a minimal ELF64 header with no sections.
func strippedELF() []byte {
	h := make([]byte, 64)
	copy(h, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	le := binary.LittleEndian
	le.PutUint16(h[16:], 2)  // ET_EXEC
	le.PutUint16(h[18:], 62) // EM_X86_64
	le.PutUint32(h[20:], 1)  // EV_CURRENT
	le.PutUint16(h[52:], 64) // e_ehsize
	le.PutUint16(h[54:], 56) // e_phentsize
	le.PutUint16(h[58:], 64) // e_shentsize
	return h
}

const compilerOutput = `Compiled by                : g++ (GNUC) 12.2.0 on Linux
Compilation architecture   : x86-64-avx2
Compilation settings       : 64bit AVX2 SSE41 SSSE3 SSE2 POPCNT
`

func goodContainer() *fakeContainer {
	return &fakeContainer{
		state:    runtime.ContainerRunning,
		compiler: compilerOutput,
		files:    map[string][]byte{"/usr/local/bin/stockfish": strippedELF()},
	}
}

func expect() Expect {
	return Expect{Arch: "x86-64-avx2", Binary: "/usr/local/bin/stockfish"}
}

func property(t *testing.T, r *Report, name string) Property {
	t.Helper()
	for _, p := range r.Properties {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("property %q not in report: %+v", name, r.Properties)
	return Property{}
}

func TestCheckPasses(t *testing.T) {
	report, err := Check(context.Background(), goodContainer(), expect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("report failed: %+v", report.Properties)
	}
	if err := report.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	var names []string
	for _, p := range report.Properties {
		names = append(names, p.Name)
	}
	want := []string{"idle", "binary", "arch", "stripped", "no-build-tools"}
	if !slices.Equal(names, want) {
		t.Errorf("properties = %v, want %v", names, want)
	}
}

func TestCheckNotRunning(t *testing.T) {
	ctr := goodContainer()
	ctr.state = runtime.ContainerStopped

	report, err := Check(context.Background(), ctr, expect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := property(t, report, "idle"); p.Passed {
		t.Error("stopped container reported idle")
	}
	if !errors.Is(report.Err(), ErrVerification) {
		t.Errorf("Err() = %v, want ErrVerification", report.Err())
	}
}

func TestCheckWrongArch(t *testing.T) {
	report, err := Check(context.Background(), goodContainer(), Expect{Arch: "x86-64", Binary: "/usr/local/bin/stockfish"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := property(t, report, "arch"); p.Passed {
		t.Error("baseline arch matched an avx2 build")
	}
}

func TestCheckBuildToolsPresent(t *testing.T) {
	ctr := goodContainer()
	ctr.tools = []string{"make", "gcc"}

	report, err := Check(context.Background(), ctr, expect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := property(t, report, "no-build-tools")
	if p.Passed {
		t.Fatal("build tools not detected")
	}
	if !strings.Contains(p.Detail, "gcc") || !strings.Contains(p.Detail, "make") {
		t.Errorf("detail = %q, want both tools named", p.Detail)
	}
}

func TestCheckMissingBinary(t *testing.T) {
	ctr := goodContainer()
	ctr.files = map[string][]byte{}

	report, err := Check(context.Background(), ctr, expect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := property(t, report, "binary"); p.Passed {
		t.Error("missing binary reported present")
	}
}

func TestCheckUnstrippedBinary(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skip("test executable unavailable")
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		t.Skip("test executable unreadable")
	}

	ctr := goodContainer()
	ctr.files["/usr/local/bin/stockfish"] = data

	report, err := Check(context.Background(), ctr, expect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := property(t, report, "stripped"); p.Passed {
		t.Error("test binary with symbols reported stripped")
	}
}

func TestMentionsArch(t *testing.T) {
	tests := []struct {
		arch string
		want bool
	}{
		{"x86-64-avx2", true},
		{"x86-64", false},
		{"armv8", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := mentionsArch(compilerOutput, tt.arch); got != tt.want {
			t.Errorf("mentionsArch(%q) = %v, want %v", tt.arch, got, tt.want)
		}
	}
}
