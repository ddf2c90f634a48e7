package uci

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cruciblehq/fishbowl/internal/fault"
)

// Default limit for a single engine invocation.
const DefaultTimeout = 2 * time.Minute

// Starts a process inside a running container with caller-supplied streams
// and returns its exit code once it ends.
type Execer interface {
	ExecStream(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error)
}

// Issues requests to an engine binary through an [Execer].
type Session struct {
	exec    Execer
	binary  string
	timeout time.Duration
}

// Configures a [Session].
type SessionOption func(*Session)

// Limits each engine invocation. Zero disables the limit.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = d
	}
}

// Creates a session that runs binary inside the container behind exec.
func NewSession(exec Execer, binary string, opts ...SessionOption) *Session {
	s := &Session{exec: exec, binary: binary, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Asks the engine for the best move in a position.
//
// Returns [ErrNoBestMove] when the engine ends without a "bestmove" line and
// [ErrEngine] when it exits non-zero. A search that printed no score is
// reported as a 0 centipawn evaluation at the requested depth.
func (s *Session) Predict(ctx context.Context, req Request) (*Prediction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.withDefaults()

	var (
		prediction Prediction
		found      bool
		bestDepth  = -1
	)

	err := s.run(ctx, Commands(req), func(line string) bool {
		switch {
		case strings.HasPrefix(line, "info"):
			if ev, ok := ParseInfo(line); ok && ev.Depth >= bestDepth {
				prediction.Evaluation = ev
				bestDepth = ev.Depth
				found = true
			}
		case strings.HasPrefix(line, "bestmove"):
			prediction.BestMove, prediction.Ponder, _ = ParseBestMove(line)
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if prediction.BestMove == "" {
		return nil, ErrNoBestMove
	}
	if !found {
		prediction.Evaluation = Evaluation{ScoreType: ScoreCentipawns, Depth: req.Depth}
	}

	slog.Debug("prediction", "bestmove", prediction.BestMove, "score", prediction.Evaluation.Score, "depth", prediction.Evaluation.Depth)
	return &prediction, nil
}

// Returns the engine's evaluation of a position.
func (s *Session) Analyze(ctx context.Context, req Request) (*Evaluation, error) {
	p, err := s.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	return &p.Evaluation, nil
}

// Returns the engine's description of its own build, as printed by the
// "compiler" command.
func (s *Session) Probe(ctx context.Context) (string, error) {
	var out strings.Builder
	err := s.run(ctx, []string{"compiler", "quit"}, func(line string) bool {
		out.WriteString(line)
		out.WriteByte('\n')
		return true
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// Runs one engine process.
//
// commands are written to the engine's stdin. Every non-empty output line is
// passed to handle until it returns false or the output ends; "quit" is then
// sent, unless commands already ended with it, and stdin closed. Output after
// handle stops is discarded.
func (s *Session) run(ctx context.Context, commands []string, handle func(line string) bool) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	stop := context.AfterFunc(ctx, func() {
		stdinW.CloseWithError(ctx.Err())
		stdoutR.CloseWithError(ctx.Err())
	})
	defer stop()

	var stderr bytes.Buffer
	type exit struct {
		code int
		err  error
	}
	done := make(chan exit, 1)

	go func() {
		code, err := s.exec.ExecStream(ctx, []string{s.binary}, stdinR, stdoutW, &stderr)
		stdinR.Close()
		stdoutW.Close()
		done <- exit{code, err}
	}()

	// Writes stop once the process is gone; its exit status carries the
	// reason.
	quit := make(chan struct{})
	sendQuit := len(commands) == 0 || commands[len(commands)-1] != "quit"
	go func() {
		if writeLines(stdinW, commands) == nil && sendQuit {
			<-quit
			writeLines(stdinW, []string{"quit"})
		}
		stdinW.Close()
	}()

	scanner := bufio.NewScanner(stdoutR)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !handle(line) {
			break
		}
	}
	close(quit)
	go io.Copy(io.Discard, stdoutR)

	result := <-done
	if result.err != nil {
		return fault.Wrap(ErrEngine, result.err)
	}
	if ctx.Err() != nil {
		return fault.Wrap(ErrEngine, ctx.Err())
	}
	if result.code != 0 {
		return fault.Wrapf(ErrEngine, "exit code %d: %s", result.code, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
