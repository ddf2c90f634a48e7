package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cruciblehq/fishbowl/internal"
	"github.com/cruciblehq/fishbowl/internal/protocol"
)

// Decodes a request payload, runs fn, and writes its result or error.
func serve[Req, Res any](ctx context.Context, s *Server, conn net.Conn, payload json.RawMessage, fn func(context.Context, Req) (*Res, error)) {
	req, err := protocol.DecodePayload[Req](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	result, err := fn(ctx, *req)
	if err != nil {
		slog.Error("command failed", "error", err)
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, result)
}

// Handles a down command. The response carries no payload.
func (s *Server) handleDown(ctx context.Context, req protocol.ContainerRequest) (*struct{}, error) {
	if err := s.backend.Down(ctx, req); err != nil {
		return nil, err
	}
	return nil, nil
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running:     true,
		Version:     internal.VersionString(),
		Pid:         os.Getpid(),
		Uptime:      uptime.String(),
		Builds:      s.backend.Builds(),
		Invocations: s.backend.Invocations(),
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}
