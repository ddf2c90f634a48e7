package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cruciblehq/fishbowl/internal"
	"github.com/cruciblehq/fishbowl/internal/client"
	"github.com/cruciblehq/fishbowl/internal/server"
)

// Represents the 'fishbowl serve' command.
type ServeCmd struct{}

// Executes the serve command.
//
// Starts the daemon on a Unix domain socket and blocks until the context is
// cancelled (e.g. via SIGINT or SIGTERM) or a shutdown command arrives.
func (c *ServeCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		SocketPath: RootCmd.Socket,
		Settings:   cfg,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info(internal.Name + " is running")

	stopped := make(chan struct{})
	go func() {
		srv.Wait()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
	case <-stopped:
	}

	slog.Info("shutting down")
	return srv.Stop()
}

// Represents the 'fishbowl status' command.
type StatusCmd struct{}

// Executes the status command.
func (c *StatusCmd) Run(ctx context.Context) error {
	status, err := client.New(RootCmd.Socket).Status(ctx)
	if err != nil {
		return err
	}

	return printResult(status, func(w io.Writer) {
		fmt.Fprintf(w, "running (pid %d, up %s)\n", status.Pid, status.Uptime)
		fmt.Fprintf(w, "version:     %s\n", status.Version)
		fmt.Fprintf(w, "builds:      %d\n", status.Builds)
		fmt.Fprintf(w, "invocations: %d\n", status.Invocations)
	})
}

// Represents the 'fishbowl shutdown' command.
type ShutdownCmd struct{}

// Executes the shutdown command.
func (c *ShutdownCmd) Run(ctx context.Context) error {
	if err := client.New(RootCmd.Socket).Shutdown(ctx); err != nil {
		return err
	}
	slog.Info("daemon stopping")
	return nil
}
