package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ansi escape sequences for terminal output.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// textHandler is the human-facing slog handler:
// [timestamp] [LEVEL] message key=value ...
// with optional color on terminals.
type textHandler struct {
	opts  *slog.HandlerOptions
	out   io.Writer
	mu    *sync.Mutex
	bound []slog.Attr
	color bool
}

func newTextHandler(out io.Writer, opts *slog.HandlerOptions, color bool) *textHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &textHandler{
		opts:  opts,
		out:   out,
		mu:    new(sync.Mutex),
		color: color,
	}
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	// Assemble the line in a local buffer; only the write is serialized.
	line := fmt.Appendf(nil, "[%s] [%s] %s",
		r.Time.Format("2006-01-02 15:04:05"),
		h.levelLabel(r.Level),
		r.Message,
	)

	for _, a := range h.bound {
		line = h.appendPair(line, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		line = h.appendPair(line, a)
		return true
	})
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line)
	return err
}

func (h *textHandler) levelLabel(level slog.Level) string {
	var label, color string
	switch {
	case level < slog.LevelInfo:
		label, color = "DEBUG", ansiGray
	case level < slog.LevelWarn:
		label, color = "INFO", ansiGreen
	case level < slog.LevelError:
		label, color = "WARN", ansiYellow
	default:
		label, color = "ERROR", ansiRed
	}
	if !h.color {
		return label
	}
	return color + label + ansiReset
}

func (h *textHandler) appendPair(line []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return line
	}
	a.Value = a.Value.Resolve()

	if h.color {
		return fmt.Appendf(line, " %s%s%s=%s", ansiCyan, a.Key, ansiReset, renderValue(a.Value))
	}
	return fmt.Appendf(line, " %s=%s", a.Key, renderValue(a.Value))
}

// renderValue keeps text output compact: durations and times get their
// canonical forms, floats three decimals, everything else %v.
func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindFloat64:
		return fmt.Sprintf("%.3f", v.Float64())
	case slog.KindAny:
		return fmt.Sprintf("%v", v.Any())
	default:
		return v.String()
	}
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(h.bound)+len(attrs))
	bound = append(bound, h.bound...)
	bound = append(bound, attrs...)
	return &textHandler{
		opts:  h.opts,
		out:   h.out,
		mu:    h.mu, // shared so interleaved writes stay whole lines
		bound: bound,
		color: h.color,
	}
}

// WithGroup is accepted but not nested: group structure adds noise to a
// line-oriented log, so grouped attrs render flat.
func (h *textHandler) WithGroup(name string) slog.Handler {
	return h
}
