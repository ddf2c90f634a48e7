package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/cruciblehq/fishbowl/internal/protocol"
	"github.com/cruciblehq/fishbowl/internal/uci"
	"github.com/google/go-cmp/cmp"
)

// Serves a single connection on a temporary socket. handler receives the
// decoded request and returns the raw response line.
func serveOnce(t *testing.T, handler func(env *protocol.Envelope, payload []byte) []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fishbowl.sock")
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		line, err := bufio.NewReader(conn).ReadBytes('\n')
		if err != nil {
			return
		}
		env, payload, err := protocol.Decode(line)
		if err != nil {
			return
		}
		reply := handler(env, payload)
		if reply == nil {
			// Hold the connection until the client goes away.
			conn.Read(make([]byte, 1))
			return
		}
		conn.Write(append(reply, '\n'))
	}()

	return path
}

func encode(t *testing.T, cmd protocol.Command, payload any) []byte {
	t.Helper()
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestPredict(t *testing.T) {
	want := uci.Prediction{
		BestMove:   "g1f3",
		Evaluation: uci.Evaluation{ScoreType: uci.ScoreMate, Score: 3, Depth: 20},
	}

	var got protocol.EngineRequest
	path := serveOnce(t, func(env *protocol.Envelope, payload []byte) []byte {
		if env.Command != protocol.CmdPredict {
			return encode(t, protocol.CmdError, protocol.ErrorResult{Message: "wrong command"})
		}
		req, _ := protocol.DecodePayload[protocol.EngineRequest](payload)
		got = *req
		return encode(t, protocol.CmdOK, want)
	})

	req := protocol.EngineRequest{Name: "engine", Request: uci.Request{Depth: 20}}
	result, err := New(path).Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(want, *result); diff != "" {
		t.Errorf("prediction mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(req, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteError(t *testing.T) {
	path := serveOnce(t, func(env *protocol.Envelope, payload []byte) []byte {
		return encode(t, protocol.CmdError, protocol.ErrorResult{Message: "engine failed"})
	})

	err := New(path).Down(context.Background(), protocol.ContainerRequest{})
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	if got := err.Error(); got != "daemon returned an error: engine failed" {
		t.Errorf("error = %q", got)
	}
}

func TestUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")

	_, err := New(path).Status(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMalformedReply(t *testing.T) {
	path := serveOnce(t, func(env *protocol.Envelope, payload []byte) []byte {
		return []byte(`{"command":"ok","payload":{"running":"yes"}}`)
	})

	_, err := New(path).Status(context.Background())
	if !errors.Is(err, protocol.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestCallCancelled(t *testing.T) {
	path := serveOnce(t, func(env *protocol.Envelope, payload []byte) []byte {
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(path).Build(ctx, protocol.BuildRequest{Arch: "armv8"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestShutdownWithoutPayload(t *testing.T) {
	path := serveOnce(t, func(env *protocol.Envelope, payload []byte) []byte {
		return encode(t, protocol.CmdOK, nil)
	})

	if err := New(path).Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
