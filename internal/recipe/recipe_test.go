package recipe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const twoStage = `
stages:
  - name: build
    from: debian:bookworm-slim
    transient: true
    steps:
      - env:
          ARCH: x86-64
      - run: make all ARCH="$ARCH"
        workdir: /src/src
  - name: runtime
    from: debian:bookworm-slim
    steps:
      - copy: build:/src/src/stockfish /usr/local/bin/stockfish
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(twoStage))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(r.Stages) != 2 {
		t.Fatalf("len(stages) = %d, want 2", len(r.Stages))
	}
	if !r.Stages[0].Transient {
		t.Fatal("build stage should be transient")
	}
	if got := r.Stages[0].Steps[0].Env["ARCH"]; got != "x86-64" {
		t.Fatalf("env ARCH = %q, want x86-64", got)
	}
	if got := r.Final().Name; got != "runtime" {
		t.Fatalf("Final().Name = %q, want runtime", got)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("stages:\n  - from: debian\n    entrypoint: [x]\n"))
	if !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("err = %v, want ErrInvalidRecipe", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	if err := os.WriteFile(path, []byte(twoStage), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.Stages) != 2 {
		t.Fatalf("len(stages) = %d, want 2", len(r.Stages))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("missing file err = %v, want ErrInvalidRecipe", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	r, err := Parse([]byte(twoStage))
	if err != nil {
		t.Fatal(err)
	}
	data, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()): %v", err)
	}
	if again.Stages[1].Steps[0].Copy != r.Stages[1].Steps[0].Copy {
		t.Fatalf("copy = %q, want %q", again.Stages[1].Steps[0].Copy, r.Stages[1].Steps[0].Copy)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		recipe  Recipe
		wantErr bool
	}{
		{
			name:    "no stages",
			recipe:  Recipe{},
			wantErr: true,
		},
		{
			name: "single final stage",
			recipe: Recipe{Stages: []Stage{
				{From: "alpine"},
			}},
		},
		{
			name: "all transient",
			recipe: Recipe{Stages: []Stage{
				{From: "alpine", Transient: true},
			}},
			wantErr: true,
		},
		{
			name: "two final stages",
			recipe: Recipe{Stages: []Stage{
				{From: "alpine"},
				{From: "alpine"},
			}},
			wantErr: true,
		},
		{
			name: "duplicate names",
			recipe: Recipe{Stages: []Stage{
				{Name: "a", From: "alpine", Transient: true},
				{Name: "a", From: "alpine"},
			}},
			wantErr: true,
		},
		{
			name: "empty source",
			recipe: Recipe{Stages: []Stage{
				{Name: "a"},
			}},
			wantErr: true,
		},
		{
			name: "run and copy together",
			recipe: Recipe{Stages: []Stage{
				{From: "alpine", Steps: []Step{{Run: "true", Copy: "a /b"}}},
			}},
			wantErr: true,
		},
		{
			name: "copy from later stage",
			recipe: Recipe{Stages: []Stage{
				{Name: "runtime", From: "alpine", Steps: []Step{{Copy: "build:/bin/x /x"}}},
				{Name: "build", From: "alpine", Transient: true},
			}},
			wantErr: true,
		},
		{
			name: "copy from own stage",
			recipe: Recipe{Stages: []Stage{
				{Name: "self", From: "alpine", Steps: []Step{{Copy: "self:/bin/x /x"}}},
			}},
			wantErr: true,
		},
		{
			name: "malformed copy",
			recipe: Recipe{Stages: []Stage{
				{From: "alpine", Steps: []Step{{Copy: "onlysource"}}},
			}},
			wantErr: true,
		},
		{
			name: "nested group references earlier stage",
			recipe: Recipe{Stages: []Stage{
				{Name: "build", From: "alpine", Transient: true},
				{From: "alpine", Steps: []Step{{
					Workdir: "/opt",
					Steps:   []Step{{Copy: "build:/out /opt/out"}},
				}}},
			}},
		},
		{
			name: "group with operation",
			recipe: Recipe{Stages: []Stage{
				{From: "alpine", Steps: []Step{{Run: "true", Steps: []Step{{Run: "true"}}}}},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.recipe.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecipe) {
					t.Fatalf("err = %v, want ErrInvalidRecipe", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplitStageCopy(t *testing.T) {
	tests := []struct {
		name  string
		input string
		stage string
		path  string
		ok    bool
	}{
		{
			name:  "valid stage copy",
			input: "build:/src/src/stockfish",
			stage: "build",
			path:  "/src/src/stockfish",
			ok:    true,
		},
		{name: "no colon", input: "/usr/local/bin"},
		{name: "colon at start", input: ":/some/path"},
		{name: "colon after slash", input: "/foo:bar"},
		{name: "slash in prefix", input: "some/stage:path"},
		{name: "simple host path", input: "file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, path, ok := SplitStageCopy(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if stage != tt.stage || path != tt.path {
				t.Errorf("got (%q, %q), want (%q, %q)", stage, path, tt.stage, tt.path)
			}
		})
	}
}
