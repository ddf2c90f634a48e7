package runtime

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestDoneReaderClosesOnEOF(t *testing.T) {
	dr := newDoneReader(strings.NewReader("uci\nquit\n"))

	data, err := io.ReadAll(dr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "uci\nquit\n" {
		t.Fatalf("data = %q", data)
	}

	select {
	case <-dr.done:
	default:
		t.Fatal("done not closed after EOF")
	}

	// Further reads past EOF must not panic on a second close.
	if _, err := dr.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("read after EOF = %v, want io.EOF", err)
	}
}

func TestDoneReaderIgnoresOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	dr := newDoneReader(iotest.ErrReader(boom))

	if _, err := dr.Read(make([]byte, 8)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	select {
	case <-dr.done:
		t.Fatal("done closed on non-EOF error")
	default:
	}
}
