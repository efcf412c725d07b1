// Package logger is the process-wide structured logger. It wraps slog with
// runtime-adjustable level and format, a console handler for terminals and
// JSON for everything else, and request-scoped field injection via
// LogContext.
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
)

// Level is the minimum severity a record needs to be emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slog() slog.Level {
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

// Config selects level, format and destination. Output is "stdout",
// "stderr" or a file path.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value // "text" or "json"

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stdout
	useColor bool
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store("text")
	if f, ok := output.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}
	reconfigure()
}

// reconfigure rebuilds the handler from the current level, format and
// output. Called under no lock by init and after every setting change.
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	levelVar := new(slog.LevelVar)
	levelVar.Set(Level(currentLevel.Load()).slog())
	opts := &slog.HandlerOptions{Level: levelVar}

	var h slog.Handler
	if format, _ := currentFormat.Load().(string); format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = newConsoleHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init applies the configuration. Color is enabled only when the
// destination is a terminal; log files never get escape codes.
func Init(cfg Config) error {
	if cfg.Output != "" {
		mu.Lock()
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			output = os.Stdout
			useColor = isTerminal(os.Stdout.Fd())
		case "stderr":
			output = os.Stderr
			useColor = isTerminal(os.Stderr.Fd())
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				mu.Unlock()
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			output = f
			useColor = false
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

// InitWithWriter points the logger at an arbitrary writer. Used by tests.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	mu.Lock()
	output = w
	useColor = enableColor
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
}

// SetLevel changes the minimum level at runtime. Unknown names are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(LevelDebug))
	case "INFO":
		currentLevel.Store(int32(LevelInfo))
	case "WARN":
		currentLevel.Store(int32(LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(LevelError))
	default:
		return
	}
	reconfigure()
}

// SetFormat switches between "text" and "json". Unknown names are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	reconfigure()
}

func getLogger() *slog.Logger {
	mu.RLock()
	l := slogger
	mu.RUnlock()
	return l
}

func levelEnabled(l Level) bool {
	return l >= Level(currentLevel.Load())
}

// Debug logs key-value pairs at debug level.
func Debug(msg string, args ...any) {
	if !levelEnabled(LevelDebug) {
		return
	}
	getLogger().Debug(msg, args...)
}

// Info logs key-value pairs at info level.
func Info(msg string, args ...any) {
	if !levelEnabled(LevelInfo) {
		return
	}
	getLogger().Info(msg, args...)
}

// Warn logs key-value pairs at warn level.
func Warn(msg string, args ...any) {
	if !levelEnabled(LevelWarn) {
		return
	}
	getLogger().Warn(msg, args...)
}

// Error logs key-value pairs at error level.
func Error(msg string, args ...any) {
	getLogger().Error(msg, args...)
}

// The Ctx variants prepend the fields carried by the LogContext in ctx, so
// every line emitted while serving one kernel request carries the same
// opcode, request id and caller identity.

func DebugCtx(ctx context.Context, msg string, args ...any) {
	if !levelEnabled(LevelDebug) {
		return
	}
	getLogger().Debug(msg, prependContextFields(ctx, args)...)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	if !levelEnabled(LevelInfo) {
		return
	}
	getLogger().Info(msg, prependContextFields(ctx, args)...)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	if !levelEnabled(LevelWarn) {
		return
	}
	getLogger().Warn(msg, prependContextFields(ctx, args)...)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Error(msg, prependContextFields(ctx, args)...)
}

func prependContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 14+len(args))
	if lc.TraceID != "" {
		out = append(out, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, KeySpanID, lc.SpanID)
	}
	if lc.Opcode != "" {
		out = append(out, KeyOpcode, lc.Opcode)
	}
	if lc.Unique != 0 {
		out = append(out, KeyRequestID, lc.Unique)
	}
	if lc.UID != 0 {
		out = append(out, KeyUID, lc.UID)
	}
	if lc.GID != 0 {
		out = append(out, KeyGID, lc.GID)
	}
	if lc.PID != 0 {
		out = append(out, KeyPID, lc.PID)
	}
	return append(out, args...)
}
