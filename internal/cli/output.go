package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cruciblehq/fishbowl/internal"
	"github.com/cruciblehq/fishbowl/internal/uci"
)

// Destination for command results. Logs go to stderr.
var stdout io.Writer = os.Stdout

// Writes a command result to stdout.
//
// In JSON mode the value is encoded as indented JSON; otherwise text is
// called to render it.
func printResult(v any, text func(w io.Writer)) error {
	if internal.IsJSON() {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(stdout)
	return nil
}

// Renders a score the way the engine reports it.
func formatScore(e uci.Evaluation) string {
	switch e.ScoreType {
	case uci.ScoreMate:
		return fmt.Sprintf("mate %s", strconv.FormatFloat(e.Score, 'f', -1, 64))
	case uci.ScoreCentipawns:
		return fmt.Sprintf("%+.2f", e.Score)
	default:
		return fmt.Sprintf("%s %s", e.ScoreType, strconv.FormatFloat(e.Score, 'f', -1, 64))
	}
}
