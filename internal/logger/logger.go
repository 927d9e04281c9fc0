// Package logger is the process-wide structured logger.
//
// It wraps log/slog behind package-level functions so any package can log
// without carrying a *slog.Logger around. Output is a colored text format on
// terminals, plain text elsewhere, or JSON.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, discard, or file path
}

var (
	level  = new(slog.LevelVar)
	format = "text"

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stdout
	useColor           = isTerminal(os.Stdout.Fd())
)

func init() {
	reconfigure()
}

// reconfigure rebuilds the handler for the current output and format.
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init applies cfg. Empty fields keep their current setting.
func Init(cfg Config) error {
	if cfg.Output != "" {
		w, color, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		mu.Lock()
		output = w
		useColor = color
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	reconfigure()
	return nil
}

func openOutput(name string) (io.Writer, bool, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout.Fd()), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr.Fd()), nil
	case "discard":
		return io.Discard, false, nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("open log file %q: %w", name, err)
	}
	return f, false, nil
}

// InitWithWriter sends log output to w. Used by tests.
func InitWithWriter(w io.Writer, lvl, fmtName string, enableColor bool) {
	mu.Lock()
	output = w
	useColor = enableColor
	mu.Unlock()

	if lvl != "" {
		SetLevel(lvl)
	}
	if fmtName != "" {
		SetFormat(fmtName)
	}
	reconfigure()
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	var l slog.Level
	switch strings.ToUpper(name) {
	case "DEBUG":
		l = slog.LevelDebug
	case "INFO":
		l = slog.LevelInfo
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		return
	}
	level.Set(l)
}

// SetFormat switches between "text" and "json". Unknown names are ignored.
func SetFormat(name string) {
	name = strings.ToLower(name)
	if name != "text" && name != "json" {
		return
	}
	mu.Lock()
	format = name
	mu.Unlock()
	reconfigure()
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level. args are slog key/value pairs or slog.Attr values.
func Debug(msg string, args ...any) { log(nil, slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { log(nil, slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { log(nil, slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { log(nil, slog.LevelError, msg, args) }

// DebugCtx logs at debug level, prefixed with the LogContext fields of ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelDebug, msg, args)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelInfo, msg, args)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelWarn, msg, args)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelError, msg, args)
}

func log(ctx context.Context, l slog.Level, msg string, args []any) {
	if l < level.Level() {
		return
	}
	if ctx != nil {
		args = appendContextFields(ctx, args)
	} else {
		ctx = context.Background()
	}
	getLogger().Log(ctx, l, msg, args...)
}

// appendContextFields prepends the LogContext fields of ctx to args.
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := []struct{ key, value string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeySession, lc.Session},
		{KeyItemID, lc.ItemID},
		{KeyOrigin, lc.Origin},
	}
	out := make([]any, 0, 2*len(fields)+len(args))
	for _, f := range fields {
		if f.value != "" {
			out = append(out, f.key, f.value)
		}
	}
	return append(out, args...)
}

// With returns a logger with args bound to every record.
func With(args ...any) *slog.Logger {
	return getLogger().With(args...)
}

// Duration returns the milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// IsTerminal reports whether fd refers to a terminal.
func IsTerminal(fd uintptr) bool {
	return isTerminal(fd)
}
