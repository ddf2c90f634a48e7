package uci

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cruciblehq/fishbowl/internal/fault"
)

const (
	StartPosition = "startpos" // Position keyword for the initial board.
	DefaultDepth  = 12         // Search depth used when a request sets none.
)

// Score types reported by the engine.
const (
	ScoreCentipawns = "cp"
	ScoreMate       = "mate"
)

// A search request.
type Request struct {
	Position string   `json:"position,omitempty"` // "startpos" or a FEN string.
	Depth    int      `json:"depth,omitempty"`    // Search depth in plies.
	Moves    []string `json:"moves,omitempty"`    // Moves played from the position, in long algebraic notation.
}

// Returns a copy of r with defaults applied.
func (r Request) withDefaults() Request {
	if strings.TrimSpace(r.Position) == "" {
		r.Position = StartPosition
	}
	if r.Depth == 0 {
		r.Depth = DefaultDepth
	}
	return r
}

// Checks that the request can be written as UCI commands.
func (r Request) Validate() error {
	r = r.withDefaults()
	if r.Depth < 0 {
		return fault.Wrapf(ErrRequest, "negative depth %d", r.Depth)
	}
	if strings.ContainsAny(r.Position, "\r\n") {
		return fault.Wrapf(ErrRequest, "position contains a line break")
	}
	for _, m := range r.Moves {
		if m == "" || strings.ContainsAny(m, " \t\r\n") {
			return fault.Wrapf(ErrRequest, "malformed move %q", m)
		}
	}
	return nil
}

// The engine's score for a position.
type Evaluation struct {
	ScoreType string  `json:"score_type"` // "cp", "mate", or another engine-specific type.
	Score     float64 `json:"score"`      // Pawns for cp, moves to mate for mate.
	Depth     int     `json:"depth"`      // Depth the score was reported at.
}

// A best move and the evaluation behind it.
type Prediction struct {
	BestMove   string     `json:"bestmove"`
	Ponder     string     `json:"ponder,omitempty"`
	Evaluation Evaluation `json:"evaluation"`
}

// Returns the UCI commands for a search request, without the final "quit".
func Commands(req Request) []string {
	req = req.withDefaults()

	var position string
	if req.Position == StartPosition {
		position = "position startpos"
	} else {
		position = "position fen " + req.Position
	}
	if len(req.Moves) > 0 {
		position += " moves " + strings.Join(req.Moves, " ")
	}

	return []string{
		"uci",
		"isready",
		"ucinewgame",
		position,
		fmt.Sprintf("go depth %d", req.Depth),
	}
}

// Parses the score out of an "info" line.
//
// Returns false when the line has no score or the score is malformed. A
// missing or malformed depth is reported as 0.
func ParseInfo(line string) (Evaluation, bool) {
	tokens := strings.Fields(line)

	i := slices.Index(tokens, "score")
	if i < 0 || i+2 >= len(tokens) {
		return Evaluation{}, false
	}
	scoreType, raw := tokens[i+1], tokens[i+2]

	depth := 0
	if j := slices.Index(tokens, "depth"); j >= 0 && j+1 < len(tokens) {
		if d, err := strconv.Atoi(tokens[j+1]); err == nil {
			depth = d
		}
	}

	var score float64
	switch scoreType {
	case ScoreCentipawns:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Evaluation{}, false
		}
		score = float64(n) / 100
	case ScoreMate:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Evaluation{}, false
		}
		score = float64(n)
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Evaluation{}, false
		}
		score = f
	}

	return Evaluation{ScoreType: scoreType, Score: score, Depth: depth}, true
}

// Parses a "bestmove <move> [ponder <move>]" line.
func ParseBestMove(line string) (best, ponder string, ok bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 || tokens[0] != "bestmove" {
		return "", "", false
	}
	if len(tokens) >= 2 {
		best = tokens[1]
	}
	if i := slices.Index(tokens, "ponder"); i >= 0 && i+1 < len(tokens) {
		ponder = tokens[i+1]
	}
	return best, ponder, best != ""
}
