package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/cruciblehq/fishbowl/internal/uci"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecode(t *testing.T) {
	req := EngineRequest{
		Name:    "stockfish-engine",
		Request: uci.Request{Depth: 18, Moves: []string{"e2e4"}},
	}

	data, err := Encode(CmdPredict, req)
	if err != nil {
		t.Fatal(err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != CmdPredict {
		t.Errorf("command = %q, want %q", env.Command, CmdPredict)
	}

	got, err := DecodePayload[EngineRequest](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if diff := cmp.Diff(&req, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineRequestIsFlat(t *testing.T) {
	data, err := json.Marshal(EngineRequest{Name: "sf", Request: uci.Request{Position: "startpos", Depth: 5}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"sf","position":"startpos","depth":5}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestEncodeNilPayload(t *testing.T) {
	data, err := Encode(CmdStatus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"command":"status"}` {
		t.Errorf("json = %s", data)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"not json":        `{"command":`,
		"missing command": `{"payload":{}}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Decode([]byte(input)); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	empty, err := DecodePayload[ContainerRequest](nil)
	if err != nil || empty.Name != "" {
		t.Errorf("empty payload = %+v, %v", empty, err)
	}

	null, err := DecodePayload[ContainerRequest](json.RawMessage("null"))
	if err != nil || null.Name != "" {
		t.Errorf("null payload = %+v, %v", null, err)
	}

	if _, err := DecodePayload[ContainerRequest](json.RawMessage(`{"name":1}`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}
