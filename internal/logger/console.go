package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// consoleHandler renders records as "[time] [LEVEL] message key=value ...",
// with ANSI colors when the output is a terminal. The mutex guards only the
// final write; formatting happens on a local buffer.
type consoleHandler struct {
	opts  *slog.HandlerOptions
	w     io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
	color bool
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *consoleHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &consoleHandler{opts: opts, w: w, mu: &sync.Mutex{}, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, "2006-01-02 15:04:05")
	buf = append(buf, "] ["...)
	buf = append(buf, h.levelLabel(r.Level)...)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)

	for _, attr := range h.attrs {
		buf = h.appendAttr(buf, attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()
	return err
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
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

func (h *consoleHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	a.Value = a.Value.Resolve()

	buf = append(buf, ' ')
	if h.color {
		buf = append(buf, ansiCyan...)
		buf = append(buf, a.Key...)
		buf = append(buf, ansiReset...)
	} else {
		buf = append(buf, a.Key...)
	}
	buf = append(buf, '=')
	return append(buf, renderValue(a.Value)...)
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		return fmt.Sprintf("%v", v.Any())
	default:
		return v.String()
	}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &consoleHandler{opts: h.opts, w: h.w, mu: h.mu, attrs: merged, color: h.color}
}

// WithGroup is accepted but flattened; console output has no nesting.
func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return h
}
