package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/cruciblehq/fishbowl/internal"
	"github.com/cruciblehq/fishbowl/internal/cli"
	"github.com/cruciblehq/fishbowl/internal/logging"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130 // 128 + SIGINT, as shells report it.
)

func main() {
	os.Exit(run())
}

// Runs the command line and returns the process exit code.
//
// Records logged before the flags are parsed are held by the handler and
// written once the CLI has chosen a level and format.
func run() int {
	handler := logging.New()
	handler.SetLevel(startupLevel())
	slog.SetDefault(slog.New(handler.WithGroup(internal.Name)))

	slog.Debug("starting",
		"version", internal.VersionString(),
		"pid", os.Getpid(),
		"args", os.Args,
	)

	err := cli.Execute()
	if err != nil {
		slog.Error(err.Error())
	}
	if ferr := handler.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return exitCode(err)
}

// Maps the error returned by the CLI to an exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFailure
	}
}

// Level used until the CLI flags are parsed, from build-time linker flags.
func startupLevel() slog.Level {
	switch {
	case internal.IsDebug():
		return slog.LevelDebug
	case internal.IsQuiet():
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
