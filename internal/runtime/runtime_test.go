package runtime

import (
	"strings"
	"testing"
)

func TestImageTag(t *testing.T) {
	tag := imageTag("/var/lib/fishbowl/images/x86-64/image.tar")

	if !strings.HasPrefix(tag, "import/") {
		t.Fatalf("tag %q missing import/ prefix", tag)
	}
	if !strings.HasSuffix(tag, ":latest") {
		t.Fatalf("tag %q missing :latest suffix", tag)
	}
	if imageTag("/var/lib/fishbowl/images/x86-64/image.tar") != tag {
		t.Fatal("imageTag is not deterministic")
	}
	if imageTag("/var/lib/fishbowl/images/x86-64-avx2/image.tar") == tag {
		t.Fatal("different paths produced the same tag")
	}
}

func TestDefaultPlatform(t *testing.T) {
	p := DefaultPlatform()
	parts := strings.Split(p, "/")
	if len(parts) != 2 || parts[0] != "linux" || parts[1] == "" {
		t.Fatalf("DefaultPlatform = %q, want linux/<arch>", p)
	}
}

func TestWithSnapshotter(t *testing.T) {
	rt := &Runtime{snapshotter: DefaultSnapshotter}

	WithSnapshotter("")(rt)
	if rt.snapshotter != DefaultSnapshotter {
		t.Fatalf("empty option changed snapshotter to %q", rt.snapshotter)
	}

	WithSnapshotter("overlayfs")(rt)
	if rt.snapshotter != "overlayfs" {
		t.Fatalf("snapshotter = %q, want overlayfs", rt.snapshotter)
	}

	ctr := rt.newContainer("engine", "linux/amd64")
	if ctr.snapshotter != "overlayfs" || ctr.ID() != "engine" || ctr.Platform() != "linux/amd64" {
		t.Fatalf("newContainer = %+v", ctr)
	}
}
