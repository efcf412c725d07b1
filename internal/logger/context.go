package logger

import (
	"context"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries the per-request fields the Ctx logging variants inject
// into every line. The dispatcher builds one per kernel request.
type LogContext struct {
	TraceID string
	SpanID  string
	Opcode  string // FUSE operation name
	Unique  uint64 // kernel request correlation id
	UID     uint32
	GID     uint32
	PID     uint32
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext builds the context for one kernel request.
func NewLogContext(opcode string, unique uint64) *LogContext {
	return &LogContext{Opcode: opcode, Unique: unique}
}

// WithCaller returns a copy with the caller identity filled in.
func (lc *LogContext) WithCaller(uid, gid, pid uint32) *LogContext {
	clone := lc.clone()
	if clone != nil {
		clone.UID = uid
		clone.GID = gid
		clone.PID = pid
	}
	return clone
}

// WithTrace returns a copy with the trace correlation ids filled in.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

func (lc *LogContext) clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}
