package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// A scripted engine that answers UCI commands read from stdin.
type fakeEngine struct {
	info        []string // Lines printed in response to "go".
	bestmove    string   // Printed after info; empty prints nothing.
	compiler    string   // Printed in response to "compiler".
	exitCode    int
	stderr      string
	err         error // Returned before reading any input.
	exitAfterGo bool  // Exit as soon as the search output is written.
	hang        bool  // Block on "go" until the context ends.

	args     []string
	received []string
}

func (f *fakeEngine) ExecStream(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	f.args = args
	if f.err != nil {
		return 0, f.err
	}

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		cmd := scanner.Text()
		f.received = append(f.received, cmd)

		switch {
		case cmd == "uci":
			fmt.Fprintln(stdout, "id name Stockfish 17")
			fmt.Fprintln(stdout, "uciok")
		case cmd == "isready":
			fmt.Fprintln(stdout, "readyok")
		case cmd == "compiler":
			fmt.Fprint(stdout, f.compiler)
		case strings.HasPrefix(cmd, "go"):
			if f.hang {
				<-ctx.Done()
				return 0, ctx.Err()
			}
			for _, line := range f.info {
				fmt.Fprintln(stdout, line)
			}
			if f.bestmove != "" {
				fmt.Fprintln(stdout, f.bestmove)
			}
			if f.exitAfterGo {
				return f.exitCode, nil
			}
		case cmd == "quit":
			io.WriteString(stderr, f.stderr)
			return f.exitCode, nil
		}
	}
	return f.exitCode, nil
}

func TestPredict(t *testing.T) {
	engine := &fakeEngine{
		info: []string{
			"info string NNUE evaluation enabled",
			"info depth 1 score cp 20 pv e2e4",
			"info depth 5 score cp 31 pv e2e4 e7e5",
			"info depth 5 seldepth 8 score cp 28 pv d2d4",
			"info depth 3 score cp 90",
		},
		bestmove: "bestmove d2d4 ponder d7d5",
	}

	s := NewSession(engine, "/usr/local/bin/stockfish")
	p, err := s.Predict(context.Background(), Request{Depth: 5, Moves: []string{"g1f3"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Prediction{
		BestMove:   "d2d4",
		Ponder:     "d7d5",
		Evaluation: Evaluation{ScoreType: "cp", Score: 0.28, Depth: 5},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("prediction mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"/usr/local/bin/stockfish"}, engine.args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	wantCommands := []string{"uci", "isready", "ucinewgame", "position startpos moves g1f3", "go depth 5", "quit"}
	if diff := cmp.Diff(wantCommands, engine.received); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestPredictWithoutScore(t *testing.T) {
	engine := &fakeEngine{bestmove: "bestmove e2e4"}

	p, err := NewSession(engine, "stockfish").Predict(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Evaluation{ScoreType: "cp", Score: 0, Depth: DefaultDepth}
	if diff := cmp.Diff(want, p.Evaluation); diff != "" {
		t.Errorf("evaluation mismatch (-want +got):\n%s", diff)
	}
	if p.Ponder != "" {
		t.Errorf("ponder = %q, want empty", p.Ponder)
	}
}

func TestPredictNoBestMove(t *testing.T) {
	engine := &fakeEngine{
		info:        []string{"info depth 1 score cp 5"},
		exitAfterGo: true,
	}

	_, err := NewSession(engine, "stockfish").Predict(context.Background(), Request{})
	if !errors.Is(err, ErrNoBestMove) {
		t.Fatalf("expected ErrNoBestMove, got %v", err)
	}
}

func TestPredictEngineFailure(t *testing.T) {
	engine := &fakeEngine{
		bestmove: "bestmove e2e4",
		exitCode: 1,
		stderr:   "Segmentation fault\n",
	}

	_, err := NewSession(engine, "stockfish").Predict(context.Background(), Request{})
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
	if !strings.Contains(err.Error(), "Segmentation fault") {
		t.Errorf("error %q does not include stderr", err)
	}
}

func TestPredictExecError(t *testing.T) {
	cause := errors.New("container is not running")
	engine := &fakeEngine{err: cause}

	_, err := NewSession(engine, "stockfish").Predict(context.Background(), Request{})
	if !errors.Is(err, ErrEngine) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrEngine wrapping the cause, got %v", err)
	}
}

func TestPredictTimeout(t *testing.T) {
	engine := &fakeEngine{hang: true}

	s := NewSession(engine, "stockfish", WithTimeout(20*time.Millisecond))
	_, err := s.Predict(context.Background(), Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPredictInvalidRequest(t *testing.T) {
	engine := &fakeEngine{bestmove: "bestmove e2e4"}

	_, err := NewSession(engine, "stockfish").Predict(context.Background(), Request{Depth: -2})
	if !errors.Is(err, ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
	if engine.args != nil {
		t.Error("engine started for an invalid request")
	}
}

func TestAnalyze(t *testing.T) {
	engine := &fakeEngine{
		info:     []string{"info depth 8 score mate 2"},
		bestmove: "bestmove h5f7",
	}

	ev, err := NewSession(engine, "stockfish").Analyze(context.Background(), Request{Position: "r1bqkbnr/pppp1ppp/2n5/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 2 3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Evaluation{ScoreType: "mate", Score: 2, Depth: 8}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("evaluation mismatch (-want +got):\n%s", diff)
	}
}

func TestProbe(t *testing.T) {
	engine := &fakeEngine{
		compiler: "Compiled by g++ (GNUC) 12.2.0 on Linux\nCompilation architecture       : x86-64-avx2\n\n",
	}

	out, err := NewSession(engine, "stockfish").Probe(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, "x86-64-avx2") {
		t.Errorf("probe output %q does not report the architecture", out)
	}
	if diff := cmp.Diff([]string{"compiler", "quit"}, engine.received); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}
