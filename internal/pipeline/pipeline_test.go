package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/cruciblehq/fishbowl/internal/recipe"
	"github.com/google/go-cmp/cmp"
)

func testOptions() Options {
	return Options{
		Arch:      "x86-64-avx2",
		Version:   "17",
		SourceURL: "https://github.com/official-stockfish/Stockfish/archive/refs/tags/sf_17.tar.gz",
	}
}

func TestComposeProducesValidRecipe(t *testing.T) {
	d := Compose(testOptions())

	r := d.Recipe()
	if err := r.Validate(); err != nil {
		t.Fatalf("composed recipe is invalid: %v", err)
	}

	if len(r.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(r.Stages))
	}
	if r.Stages[0].Name != BuildStage || !r.Stages[0].Transient {
		t.Errorf("first stage = %q transient=%v, want transient %q", r.Stages[0].Name, r.Stages[0].Transient, BuildStage)
	}
	if final := r.Final(); final.Name != RuntimeStage {
		t.Errorf("final stage = %q, want %q", final.Name, RuntimeStage)
	}
}

func TestComposeBuildStage(t *testing.T) {
	build, ok := Compose(testOptions()).Stage(BuildStage)
	if !ok {
		t.Fatal("build stage missing")
	}

	if build.From != DefaultBase {
		t.Errorf("from = %q, want %q", build.From, DefaultBase)
	}

	want := []recipe.Step{
		{Env: map[string]string{"DEBIAN_FRONTEND": "noninteractive"}},
		{Run: "apt-get update && apt-get install -y --no-install-recommends build-essential ca-certificates wget && rm -rf /var/lib/apt/lists/*"},
		{
			Shell: "/bin/bash",
			Run:   "set -o pipefail; mkdir -p /src && wget -qO- https://github.com/official-stockfish/Stockfish/archive/refs/tags/sf_17.tar.gz | tar xz --strip-components=1 -C /src",
		},
		{Env: map[string]string{"ARCH": "x86-64-avx2"}},
		{Workdir: "/src/src"},
		{Run: "make net"},
		{Run: `make -j"$(nproc)" all ARCH="$ARCH"`},
		{Run: "strip stockfish"},
		{Run: `test -z "$(nm stockfish 2>/dev/null)"`},
	}

	if diff := cmp.Diff(want, build.Steps); diff != "" {
		t.Errorf("build steps mismatch (-want +got):\n%s", diff)
	}
}

func TestComposeRuntimeStage(t *testing.T) {
	rt, ok := Compose(testOptions()).Stage(RuntimeStage)
	if !ok {
		t.Fatal("runtime stage missing")
	}

	want := []recipe.Step{
		{Env: map[string]string{"DEBIAN_FRONTEND": "noninteractive"}},
		{Run: "apt-get update && apt-get install -y --no-install-recommends ca-certificates && rm -rf /var/lib/apt/lists/*"},
		{Copy: "build:/src/src/stockfish /usr/local/bin/stockfish"},
	}
	if diff := cmp.Diff(want, rt.Steps); diff != "" {
		t.Errorf("runtime steps mismatch (-want +got):\n%s", diff)
	}

	for _, step := range rt.Steps {
		for _, tool := range []string{"build-essential", "wget", "make"} {
			if strings.Contains(step.Run, tool) {
				t.Errorf("runtime step %q mentions build tool %q", step.Run, tool)
			}
		}
	}
}

func TestComposeExportOptions(t *testing.T) {
	export := Compose(testOptions()).Export()

	if diff := cmp.Diff([]string{"sleep", "infinity"}, export.Entrypoint); diff != "" {
		t.Errorf("entrypoint mismatch (-want +got):\n%s", diff)
	}

	want := map[string]string{
		LabelArch:    "x86-64-avx2",
		LabelVersion: "17",
		LabelBinary:  "/usr/local/bin/stockfish",
	}
	if diff := cmp.Diff(want, export.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if export.CreatedBy != "fishbowl assemble ARCH=x86-64-avx2" {
		t.Errorf("created by = %q", export.CreatedBy)
	}
}

func TestComposeDefaults(t *testing.T) {
	d := Compose(Options{SourceURL: "https://example.com/engine.tar.gz"})

	if got := d.Export().Labels[LabelArch]; got != DefaultArch {
		t.Errorf("arch label = %q, want %q", got, DefaultArch)
	}
	if _, ok := d.Export().Labels[LabelVersion]; ok {
		t.Error("version label set without a version")
	}
}

func TestComposeArchPassThrough(t *testing.T) {
	// Unknown profiles are forwarded verbatim; the engine build rejects them.
	opts := testOptions()
	opts.Arch = "not-a-real-arch"

	build, _ := Compose(opts).Stage(BuildStage)

	found := false
	for _, step := range build.Steps {
		if step.Env["ARCH"] == "not-a-real-arch" {
			found = true
		}
		if strings.Contains(step.Run, "not-a-real-arch") {
			t.Errorf("arch interpolated into command %q", step.Run)
		}
	}
	if !found {
		t.Error("arch not forwarded to the build environment")
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("pass-through arch rejected: %v", err)
	}
}

func TestComposeSourceDir(t *testing.T) {
	opts := testOptions()
	opts.SourceDir = "/home/dev/Stockfish"

	build, _ := Compose(opts).Stage(BuildStage)

	if diff := cmp.Diff(recipe.Step{Copy: "/home/dev/Stockfish /src"}, build.Steps[2]); diff != "" {
		t.Errorf("source step mismatch (-want +got):\n%s", diff)
	}
	for _, step := range build.Steps {
		if strings.Contains(step.Run, "wget") {
			t.Errorf("source fetched although a directory was given: %q", step.Run)
		}
	}
}

func TestComposeCustomBinary(t *testing.T) {
	opts := testOptions()
	opts.Executable = "engine"
	opts.BinaryPath = "/opt/engine/bin/engine"

	rt, _ := Compose(opts).Stage(RuntimeStage)
	last := rt.Steps[len(rt.Steps)-1]
	if last.Copy != "build:/src/src/engine /opt/engine/bin/engine" {
		t.Errorf("copy = %q", last.Copy)
	}
}

func TestStagesArePure(t *testing.T) {
	opts := testOptions()
	stages := Stages(opts)

	var d Descriptor
	for _, stage := range stages[:2] {
		d = stage(d)
	}
	before := d.Stages()

	// Applying later stages must not alter the earlier descriptor.
	after := stages[2](d)
	after = stages[3](after)

	if diff := cmp.Diff(before, d.Stages()); diff != "" {
		t.Errorf("earlier descriptor changed (-before +after):\n%s", diff)
	}
	if len(after.Stages()[0].Steps) <= len(before[0].Steps) {
		t.Error("later stages added no steps")
	}
}

func TestDescriptorCopiesAreIndependent(t *testing.T) {
	d := Compose(testOptions())

	stages := d.Stages()
	stages[0].Steps[0].Env["DEBIAN_FRONTEND"] = "dialog"
	export := d.Export()
	export.Entrypoint[0] = "stockfish"
	export.Labels[LabelArch] = "armv8"

	again, _ := d.Stage(BuildStage)
	if again.Steps[0].Env["DEBIAN_FRONTEND"] != "noninteractive" {
		t.Error("stage env shared with caller")
	}
	if d.Export().Entrypoint[0] != "sleep" {
		t.Error("entrypoint shared with caller")
	}
	if d.Export().Labels[LabelArch] != "x86-64-avx2" {
		t.Error("labels shared with caller")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"url", Options{SourceURL: "https://example.com/a.tar.gz"}, false},
		{"dir", Options{SourceDir: "/src/engine"}, false},
		{"no source", Options{}, true},
		{"executable with slash", Options{SourceDir: "/s", Executable: "bin/engine"}, true},
		{"relative binary path", Options{SourceDir: "/s", BinaryPath: "bin/engine"}, true},
		{"source dir with space", Options{SourceDir: "/my src"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOptions) {
					t.Fatalf("expected ErrInvalidOptions, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"stockfish":                "stockfish",
		"https://a.example/x.tgz": "https://a.example/x.tgz",
		"a b":                      "'a b'",
		"it's":                     `'it'\''s'`,
		"":                         "''",
		"$(reboot)":                "'$(reboot)'",
	}
	for in, want := range tests {
		if got := shellQuote(in); got != want {
			t.Errorf("shellQuote(%q) = %q, want %q", in, got, want)
		}
	}
}
