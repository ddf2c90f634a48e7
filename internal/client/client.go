package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/paths"
	"github.com/cruciblehq/fishbowl/internal/protocol"
	"github.com/cruciblehq/fishbowl/internal/uci"
)

var (
	ErrUnavailable = errors.New("daemon unavailable")
	ErrRemote      = errors.New("daemon returned an error")
)

// A daemon client.
type Client struct {
	socketPath string
}

// Creates a client for the socket at path. An empty path uses the default.
func New(socketPath string) *Client {
	if socketPath == "" {
		socketPath = paths.Socket()
	}
	return &Client{socketPath: socketPath}
}

// Sends a command and decodes the response payload into result.
//
// result may be nil when the response carries nothing of interest. An error
// response is returned as [ErrRemote] with the daemon's message.
func (c *Client) Call(ctx context.Context, cmd protocol.Command, payload, result any) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fault.Wrap(ErrUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return fault.Wrap(ErrUnavailable, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fault.Wrap(ErrUnavailable, err)
	}

	env, body, err := protocol.Decode(line)
	if err != nil {
		return err
	}

	if env.Command == protocol.CmdError {
		msg, err := protocol.DecodePayload[protocol.ErrorResult](body)
		if err != nil {
			return err
		}
		return fault.Wrapf(ErrRemote, "%s", msg.Message)
	}

	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fault.Wrap(protocol.ErrMalformed, err)
	}
	return nil
}

// Returns the daemon status.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResult, error) {
	var r protocol.StatusResult
	if err := c.Call(ctx, protocol.CmdStatus, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Asks the daemon to stop.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.Call(ctx, protocol.CmdShutdown, nil, nil)
}

// Builds a runtime image.
func (c *Client) Build(ctx context.Context, req protocol.BuildRequest) (*protocol.BuildResult, error) {
	var r protocol.BuildResult
	if err := c.Call(ctx, protocol.CmdBuild, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Starts the idle runtime container.
func (c *Client) Up(ctx context.Context, req protocol.UpRequest) (*protocol.UpResult, error) {
	var r protocol.UpResult
	if err := c.Call(ctx, protocol.CmdUp, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Removes the runtime container.
func (c *Client) Down(ctx context.Context, req protocol.ContainerRequest) error {
	return c.Call(ctx, protocol.CmdDown, req, nil)
}

// Reports runtime container readiness.
func (c *Client) Ready(ctx context.Context, req protocol.ContainerRequest) (*protocol.ReadyResult, error) {
	var r protocol.ReadyResult
	if err := c.Call(ctx, protocol.CmdReady, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Asks the engine for the best move.
func (c *Client) Predict(ctx context.Context, req protocol.EngineRequest) (*uci.Prediction, error) {
	var r uci.Prediction
	if err := c.Call(ctx, protocol.CmdPredict, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Asks the engine for an evaluation.
func (c *Client) Analyze(ctx context.Context, req protocol.EngineRequest) (*uci.Evaluation, error) {
	var r uci.Evaluation
	if err := c.Call(ctx, protocol.CmdAnalyze, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Returns the engine's build description.
func (c *Client) Probe(ctx context.Context, req protocol.ContainerRequest) (*protocol.ProbeResult, error) {
	var r protocol.ProbeResult
	if err := c.Call(ctx, protocol.CmdProbe, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
