package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cruciblehq/fishbowl/internal/fault"
)

var ErrMalformed = errors.New("malformed message")

// Identifies a request or response.
type Command string

const (
	CmdBuild    Command = "build"
	CmdUp       Command = "up"
	CmdDown     Command = "down"
	CmdReady    Command = "ready"
	CmdPredict  Command = "predict"
	CmdAnalyze  Command = "analyze"
	CmdProbe    Command = "probe"
	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"

	CmdOK    Command = "ok"
	CmdError Command = "error"
)

// Wire format of every message.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encodes a command and its payload. A nil payload is omitted.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fault.Wrap(ErrMalformed, err)
		}
		env.Payload = data
	}
	return json.Marshal(env)
}

// Decodes an envelope, returning it along with its raw payload.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fault.Wrap(ErrMalformed, err)
	}
	if env.Command == "" {
		return nil, nil, fault.Wrapf(ErrMalformed, "missing command")
	}
	return &env, env.Payload, nil
}

// Decodes a payload into a value of type T. An empty payload yields the
// zero value.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 || string(payload) == "null" {
		return &v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fault.Wrap(ErrMalformed, fmt.Errorf("payload: %w", err))
	}
	return &v, nil
}
