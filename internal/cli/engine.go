package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/cruciblehq/fishbowl/internal/protocol"
	"github.com/cruciblehq/fishbowl/internal/uci"
)

// Represents the 'fishbowl up' command.
type UpCmd struct {
	Name    string `short:"n" help:"Container name. Defaults to the configured name."`
	Arch    string `short:"a" help:"Architecture profile whose image to start."`
	Archive string `help:"Image archive to start instead of the one under the output directory." type:"existingfile" placeholder:"FILE"`
}

// Executes the up command.
func (c *UpCmd) Run(ctx context.Context) error {
	ops, err := connect()
	if err != nil {
		return err
	}
	defer ops.Close()

	result, err := ops.Up(ctx, protocol.UpRequest{Name: c.Name, Arch: c.Arch, Archive: c.Archive})
	if err != nil {
		return err
	}

	return printResult(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s is idle (image %s, binary %s)\n", result.Name, result.Image, result.Binary)
	})
}

// Represents the 'fishbowl down' command.
type DownCmd struct {
	Name string `short:"n" help:"Container name. Defaults to the configured name."`
}

// Executes the down command.
func (c *DownCmd) Run(ctx context.Context) error {
	ops, err := connect()
	if err != nil {
		return err
	}
	defer ops.Close()

	return ops.Down(ctx, protocol.ContainerRequest{Name: c.Name})
}

// Represents the 'fishbowl ready' command.
//
// Exits non-zero when the container is not running, so it can be used as a
// readiness probe.
type ReadyCmd struct {
	Name string `short:"n" help:"Container name. Defaults to the configured name."`
}

// Executes the ready command.
func (c *ReadyCmd) Run(ctx context.Context) error {
	ops, err := connect()
	if err != nil {
		return err
	}
	defer ops.Close()

	result, err := ops.Ready(ctx, protocol.ContainerRequest{Name: c.Name})
	if err != nil {
		return err
	}

	if err := printResult(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s\n", result.Name, result.State)
	}); err != nil {
		return err
	}

	if !result.Ready {
		return fmt.Errorf("%s is not ready", result.Name)
	}
	return nil
}

// Flags shared by the commands that search a position.
type SearchFlags struct {
	Name  string   `short:"n" help:"Container name. Defaults to the configured name."`
	FEN   string   `name:"fen" help:"Position in FEN. Defaults to the initial position." placeholder:"FEN"`
	Depth int      `help:"Search depth in plies. Defaults to 12."`
	Moves []string `arg:"" optional:"" help:"Moves played from the position, in long algebraic notation."`
}

// Builds the engine request.
func (f *SearchFlags) request() protocol.EngineRequest {
	return protocol.EngineRequest{
		Name: f.Name,
		Request: uci.Request{
			Position: f.FEN,
			Depth:    f.Depth,
			Moves:    f.Moves,
		},
	}
}

// Represents the 'fishbowl predict' command.
type PredictCmd struct {
	SearchFlags `embed:""`
}

// Executes the predict command.
func (c *PredictCmd) Run(ctx context.Context) error {
	ops, err := connect()
	if err != nil {
		return err
	}
	defer ops.Close()

	result, err := ops.Predict(ctx, c.request())
	if err != nil {
		return err
	}

	return printResult(result, func(w io.Writer) {
		fmt.Fprintf(w, "bestmove %s", result.BestMove)
		if result.Ponder != "" {
			fmt.Fprintf(w, " ponder %s", result.Ponder)
		}
		fmt.Fprintf(w, " (%s at depth %d)\n", formatScore(result.Evaluation), result.Evaluation.Depth)
	})
}

// Represents the 'fishbowl analyze' command.
type AnalyzeCmd struct {
	SearchFlags `embed:""`
}

// Executes the analyze command.
func (c *AnalyzeCmd) Run(ctx context.Context) error {
	ops, err := connect()
	if err != nil {
		return err
	}
	defer ops.Close()

	result, err := ops.Analyze(ctx, c.request())
	if err != nil {
		return err
	}

	return printResult(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s at depth %d\n", formatScore(*result), result.Depth)
	})
}

// Represents the 'fishbowl probe' command.
type ProbeCmd struct {
	Name string `short:"n" help:"Container name. Defaults to the configured name."`
}

// Executes the probe command.
func (c *ProbeCmd) Run(ctx context.Context) error {
	ops, err := connect()
	if err != nil {
		return err
	}
	defer ops.Close()

	result, err := ops.Probe(ctx, protocol.ContainerRequest{Name: c.Name})
	if err != nil {
		return err
	}

	return printResult(result, func(w io.Writer) {
		fmt.Fprint(w, result.Output)
	})
}
