package fault

import (
	"errors"
	"io/fs"
	"testing"
)

var (
	errOuter = errors.New("outer failed")
	errOther = errors.New("other failed")
)

func TestWrapMatchesSentinelAndCause(t *testing.T) {
	err := Wrap(errOuter, fs.ErrNotExist)

	if !errors.Is(err, errOuter) {
		t.Fatal("wrapped error does not match sentinel")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("wrapped error does not match cause")
	}
	if errors.Is(err, errOther) {
		t.Fatal("wrapped error matches unrelated sentinel")
	}
	if got, want := err.Error(), "outer failed: file does not exist"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(errOuter, nil); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestWrapfKeepsVerbW(t *testing.T) {
	err := Wrapf(errOuter, "stage %d: %w", 2, fs.ErrPermission)

	if !errors.Is(err, errOuter) || !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("errors.Is failed for %v", err)
	}
	if got, want := err.Error(), "outer failed: stage 2: permission denied"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestNestedWrap(t *testing.T) {
	inner := Wrap(errOther, fs.ErrClosed)
	err := Wrapf(errOuter, "step %d: %w", 1, inner)

	for _, target := range []error{errOuter, errOther, fs.ErrClosed} {
		if !errors.Is(err, target) {
			t.Errorf("errors.Is(%v) = false", target)
		}
	}
}

func TestIsAny(t *testing.T) {
	err := Wrap(errOther, fs.ErrClosed)
	if !IsAny(err, errOuter, errOther) {
		t.Fatal("IsAny should match errOther")
	}
	if IsAny(err, errOuter) {
		t.Fatal("IsAny should not match errOuter")
	}
	if IsAny(nil, errOuter) {
		t.Fatal("IsAny(nil) should be false")
	}
}
