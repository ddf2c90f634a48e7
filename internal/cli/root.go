package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cruciblehq/fishbowl/internal"
	"github.com/cruciblehq/fishbowl/internal/client"
	"github.com/cruciblehq/fishbowl/internal/config"
	"github.com/cruciblehq/fishbowl/internal/logging"
	"github.com/cruciblehq/fishbowl/internal/protocol"
	"github.com/cruciblehq/fishbowl/internal/service"
	"github.com/cruciblehq/fishbowl/internal/uci"
)

// Represents the root command for fishbowl.
var RootCmd struct {
	Quiet   bool   `short:"q" help:"Suppress informational output."`
	Verbose bool   `short:"v" help:"Enable verbose output."`
	Debug   bool   `short:"d" help:"Enable debug output."`
	JSON    bool   `name:"json" help:"Write log records and results as JSON."`
	Config  string `short:"c" help:"Override the default configuration file." placeholder:"PATH" type:"path"`
	Socket  string `short:"s" help:"Override the default Unix socket path." placeholder:"PATH" type:"path"`
	Daemon  bool   `short:"D" help:"Send the command to a running daemon."`

	Build    BuildCmd    `cmd:"" help:"Build the engine and export a minimal runtime image."`
	Up       UpCmd       `cmd:"" help:"Start the idle runtime container from an exported image."`
	Down     DownCmd     `cmd:"" help:"Stop and remove the runtime container."`
	Ready    ReadyCmd    `cmd:"" help:"Report whether the runtime container is running."`
	Predict  PredictCmd  `cmd:"" help:"Ask the engine for the best move in a position."`
	Analyze  AnalyzeCmd  `cmd:"" help:"Ask the engine for the evaluation of a position."`
	Probe    ProbeCmd    `cmd:"" help:"Show the build description of the engine in the container."`
	Serve    ServeCmd    `cmd:"" help:"Run the daemon in the foreground."`
	Status   StatusCmd   `cmd:"" help:"Show daemon status."`
	Shutdown ShutdownCmd `cmd:"" help:"Stop a running daemon."`
	Settings SettingsCmd `cmd:"" help:"Print the effective configuration."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`
}

// Operations every command runs against, locally or through the daemon.
type operations interface {
	Build(ctx context.Context, req protocol.BuildRequest) (*protocol.BuildResult, error)
	Up(ctx context.Context, req protocol.UpRequest) (*protocol.UpResult, error)
	Down(ctx context.Context, req protocol.ContainerRequest) error
	Ready(ctx context.Context, req protocol.ContainerRequest) (*protocol.ReadyResult, error)
	Predict(ctx context.Context, req protocol.EngineRequest) (*uci.Prediction, error)
	Analyze(ctx context.Context, req protocol.EngineRequest) (*uci.Evaluation, error)
	Probe(ctx context.Context, req protocol.ContainerRequest) (*protocol.ProbeResult, error)
	Close() error
}

// Daemon client adapted to [operations]. Connections are per call, so
// there is nothing to close.
type remote struct {
	*client.Client
}

func (remote) Close() error { return nil }

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Builds a chess engine into a minimal container image and runs it on demand."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	handler, ok := slog.Default().Handler().(*logging.Handler)
	if !ok {
		return // Not a logging.Handler, nothing to configure
	}

	internal.SetDebug(RootCmd.Debug || internal.IsDebug())
	internal.SetQuiet(RootCmd.Quiet || internal.IsQuiet())
	internal.SetVerbose(RootCmd.Verbose || internal.IsVerbose())
	internal.SetJSON(RootCmd.JSON || internal.IsJSON())

	// Configure formatter
	var formatter logging.Formatter
	if internal.IsJSON() {
		formatter = logging.NewJSONFormatter()
	} else {
		pretty := logging.NewPrettyFormatter(isatty(os.Stderr))
		pretty.SetVerbose(internal.IsVerbose())
		formatter = pretty
	}

	// Configure handler
	if internal.IsDebug() {
		handler.SetLevel(slog.LevelDebug)
	} else if internal.IsQuiet() {
		handler.SetLevel(slog.LevelWarn)
	} else {
		handler.SetLevel(slog.LevelInfo)
	}

	// Commit
	handler.SetFormatter(formatter)
	handler.SetStream(os.Stderr)
	handler.Flush()
}

// Loads the configuration file named by --config, or the default one.
func loadConfig() (*config.Config, error) {
	return config.Load(RootCmd.Config)
}

// Returns the operations for the current invocation.
//
// With --daemon the daemon client is used; otherwise a local service is
// connected to containerd. The caller must close the result.
func connect() (operations, error) {
	if RootCmd.Daemon {
		return remote{client.New(RootCmd.Socket)}, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	svc, err := service.New(cfg)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Whether the given file is an interactive terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
