package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ANSI escape sequences used by the pretty formatter.
const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// Human-oriented formatter for terminals.
//
// Informational records print the message alone. Warnings, errors, and debug
// records carry a level prefix. Attributes are printed as key=value pairs.
// In verbose mode every line is prefixed with its timestamp.
type PrettyFormatter struct {
	color   bool
	verbose bool
}

// Creates a pretty formatter. Color is enabled when the output is a terminal.
func NewPrettyFormatter(color bool) *PrettyFormatter {
	return &PrettyFormatter{color: color}
}

// Enables or disables timestamps on every line.
func (f *PrettyFormatter) SetVerbose(verbose bool) {
	f.verbose = verbose
}

// Renders the record as a single line.
func (f *PrettyFormatter) Format(r Record) []byte {
	var b strings.Builder

	if f.verbose {
		b.WriteString(f.paint(ansiDim, r.Time))
		b.WriteByte(' ')
	}

	if prefix, code := levelPrefix(r.Level); prefix != "" {
		b.WriteString(f.paint(code, prefix))
		b.WriteByte(' ')
	}

	b.WriteString(r.Message)

	for _, a := range r.Attrs {
		b.WriteByte(' ')
		b.WriteString(f.paint(ansiDim, a.Key+"="+formatValue(a.Value)))
	}

	b.WriteByte('\n')
	return []byte(b.String())
}

func (f *PrettyFormatter) paint(code, s string) string {
	if !f.color {
		return s
	}
	return code + s + ansiReset
}

// Returns the line prefix and color for a level.
func levelPrefix(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "error:", ansiRed
	case level >= slog.LevelWarn:
		return "warning:", ansiYellow
	case level < slog.LevelInfo:
		return "debug:", ansiCyan
	default:
		return "", ""
	}
}

// Renders a value, quoting strings that contain whitespace.
func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return fmt.Sprintf("%q", err.Error())
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// Machine-oriented formatter emitting one JSON object per line.
type JSONFormatter struct{}

// Creates a JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Renders the record as a JSON object with time, level, msg, and attrs.
func (JSONFormatter) Format(r Record) []byte {
	obj := make(map[string]any, len(r.Attrs)+3)
	for _, a := range r.Attrs {
		obj[a.Key] = jsonValue(a.Value)
	}
	obj["time"] = r.Time
	obj["level"] = r.Level.String()
	obj["msg"] = r.Message

	b, err := json.Marshal(obj)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"level": r.Level.String(), "msg": r.Message})
	}
	return append(b, '\n')
}

func jsonValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	case slog.KindDuration, slog.KindTime:
		return v.String()
	default:
		return v.Any()
	}
}
