// Package logger is a thin slog front-end shared by every courier process.
// It owns the process-wide handler (text or JSON), level switching at
// runtime, and the request-scoped field plumbing in context.go. Sensitive
// values never reach a handler directly: call sites go through the field
// constructors in fields.go, which mask phone numbers centrally.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

// Level is the minimum severity a record needs to be emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config selects the level, format, and destination of the process log.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	minLevel atomic.Int32 // Level
	format   atomic.Value // "text" or "json"

	mu        sync.RWMutex
	slogger   *slog.Logger
	dest      io.Writer = os.Stdout
	colorized           = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
)

func init() {
	minLevel.Store(int32(LevelInfo))
	format.Store("text")
	rebuild()
}

// rebuild swaps in a handler reflecting the current settings.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	lv := new(slog.LevelVar)
	lv.Set(Level(minLevel.Load()).slogLevel())
	opts := &slog.HandlerOptions{Level: lv}

	var h slog.Handler
	if f, _ := format.Load().(string); f == "json" {
		h = slog.NewJSONHandler(dest, opts)
	} else {
		h = newTextHandler(dest, opts, colorized)
	}
	slogger = slog.New(h)
}

// Init applies the configuration. Output may be "stdout", "stderr", or a
// file path; files are opened append-only and never colorized.
func Init(cfg Config) error {
	if cfg.Output != "" {
		mu.Lock()
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			dest = os.Stdout
			colorized = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		case "stderr":
			dest = os.Stderr
			colorized = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				mu.Unlock()
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			dest = f
			colorized = false
		}
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	return nil
}

// InitWithWriter points the logger at an arbitrary writer. Test use.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	mu.Lock()
	dest = w
	colorized = enableColor
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
}

// SetLevel sets the minimum emitted level. Unknown names are ignored.
func SetLevel(level string) {
	for l, name := range levelNames {
		if name == strings.ToUpper(level) {
			minLevel.Store(int32(l))
			rebuild()
			return
		}
	}
}

// SetFormat switches between "text" and "json". Unknown names are ignored.
func SetFormat(f string) {
	f = strings.ToLower(f)
	if f != "text" && f != "json" {
		return
	}
	format.Store(f)
	rebuild()
}

func active() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

func enabled(l Level) bool {
	return l >= Level(minLevel.Load())
}

// Debug logs at debug level. Args alternate keys and values, or are
// slog.Attr values from fields.go.
func Debug(msg string, args ...any) {
	if enabled(LevelDebug) {
		active().Debug(msg, args...)
	}
}

// Info logs at info level.
func Info(msg string, args ...any) {
	if enabled(LevelInfo) {
		active().Info(msg, args...)
	}
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	if enabled(LevelWarn) {
		active().Warn(msg, args...)
	}
}

// Error logs at error level.
func Error(msg string, args ...any) {
	active().Error(msg, args...)
}

// DebugCtx logs at debug level with the request fields carried by ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelDebug) {
		active().Debug(msg, withContextFields(ctx, args)...)
	}
}

// InfoCtx logs at info level with the request fields carried by ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelInfo) {
		active().Info(msg, withContextFields(ctx, args)...)
	}
}

// WarnCtx logs at warn level with the request fields carried by ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelWarn) {
		active().Warn(msg, withContextFields(ctx, args)...)
	}
}

// ErrorCtx logs at error level with the request fields carried by ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	active().Error(msg, withContextFields(ctx, args)...)
}

// withContextFields prepends the LogContext fields so they lead the record.
func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 10+len(args))
	if lc.RequestID != "" {
		out = append(out, KeyRequestID, lc.RequestID)
	}
	if lc.ClientID != "" {
		out = append(out, KeyClientID, lc.ClientID)
	}
	if lc.ClientIP != "" {
		out = append(out, KeyClientIP, lc.ClientIP)
	}
	if lc.Endpoint != "" {
		out = append(out, KeyEndpoint, lc.Endpoint)
	}
	if lc.WorkerID != "" {
		out = append(out, KeyWorkerID, lc.WorkerID)
	}
	return append(out, args...)
}

// Debugf logs a printf-formatted message at debug level.
func Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		active().Debug(fmt.Sprintf(format, v...))
	}
}

// Infof logs a printf-formatted message at info level.
func Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		active().Info(fmt.Sprintf(format, v...))
	}
}

// Warnf logs a printf-formatted message at warn level.
func Warnf(format string, v ...any) {
	if enabled(LevelWarn) {
		active().Warn(fmt.Sprintf(format, v...))
	}
}

// Errorf logs a printf-formatted message at error level.
func Errorf(format string, v ...any) {
	active().Error(fmt.Sprintf(format, v...))
}
