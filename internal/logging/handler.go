package logging

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// A materialized log record with group-qualified attribute keys.
type Record struct {
	Time    string      // RFC 3339 timestamp.
	Level   slog.Level  // Severity of the record.
	Message string      // Log message.
	Attrs   []slog.Attr // Attributes in emission order, keys joined by ".".
}

// Renders a [Record] into bytes written to the handler stream.
type Formatter interface {
	Format(r Record) []byte
}

// Shared, mutable configuration behind every handler derived from [New].
type state struct {
	mu        sync.Mutex
	level     slog.LevelVar
	formatter Formatter
	stream    io.Writer // Nil until SetStream; records are buffered meanwhile.
	pending   []Record
}

// A [slog.Handler] that buffers records until it is configured.
//
// The process logger is created before flags are parsed, so early records
// are held in memory. Once the CLI has decided on level, formatter, and
// stream, [Handler.Flush] writes the buffered records that pass the final
// level. Handlers derived through WithAttrs and WithGroup share the same
// configuration.
type Handler struct {
	state  *state
	attrs  []slog.Attr
	groups []string
}

// Creates a buffering handler at info level with a plain formatter.
func New() *Handler {
	s := &state{formatter: NewPrettyFormatter(false)}
	s.level.Set(slog.LevelInfo)
	return &Handler{state: s}
}

// Sets the minimum level for emitted records.
func (h *Handler) SetLevel(level slog.Level) {
	h.state.level.Set(level)
}

// Replaces the formatter.
func (h *Handler) SetFormatter(f Formatter) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.formatter = f
}

// Sets the output stream. Subsequent records are written immediately.
func (h *Handler) SetStream(w io.Writer) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.stream = w
}

// Writes buffered records that pass the current level and drops the rest.
func (h *Handler) Flush() error {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	if h.state.stream == nil {
		return nil
	}

	pending := h.state.pending
	h.state.pending = nil

	for _, r := range pending {
		if r.Level < h.state.level.Level() {
			continue
		}
		if _, err := h.state.stream.Write(h.state.formatter.Format(r)); err != nil {
			return err
		}
	}
	return nil
}

// Reports whether records at the given level are handled.
//
// While unconfigured, every record is accepted so that the final level can
// be applied at flush time.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	h.state.mu.Lock()
	buffering := h.state.stream == nil
	h.state.mu.Unlock()

	return buffering || level >= h.state.level.Level()
}

// Formats the record and writes or buffers it.
func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	r := Record{
		Time:    rec.Time.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Level:   rec.Level,
		Message: rec.Message,
		Attrs:   slices.Clone(h.attrs),
	}
	rec.Attrs(func(a slog.Attr) bool {
		r.Attrs = appendAttr(r.Attrs, h.groups, a)
		return true
	})

	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	if h.state.stream == nil {
		h.state.pending = append(h.state.pending, r)
		return nil
	}

	_, err := h.state.stream.Write(h.state.formatter.Format(r))
	return err
}

// Returns a handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		next.attrs = appendAttr(next.attrs, h.groups, a)
	}
	return next
}

// Returns a handler that qualifies subsequent attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

func (h *Handler) clone() *Handler {
	return &Handler{
		state:  h.state,
		attrs:  slices.Clone(h.attrs),
		groups: slices.Clone(h.groups),
	}
}

// Appends an attribute, flattening groups into dotted keys.
func appendAttr(dst []slog.Attr, groups []string, a slog.Attr) []slog.Attr {
	v := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}

	if v.Kind() == slog.KindGroup {
		nested := groups
		if a.Key != "" {
			nested = append(slices.Clone(groups), a.Key)
		}
		for _, ga := range v.Group() {
			dst = appendAttr(dst, nested, ga)
		}
		return dst
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, slog.Attr{Key: key, Value: v})
}
