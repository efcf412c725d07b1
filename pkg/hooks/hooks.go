// Package hooks runs registered policy hooks against filesystem events.
// Hooks inspect a write or create before it lands in the metadata store and
// can allow it, attach a warning, or block it outright.
package hooks

import (
	"context"
	"sort"
	"sync"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/telemetry"
)

// Verdict is the outcome of a single hook evaluation.
type Verdict int

const (
	// Allow lets the operation proceed unchanged.
	Allow Verdict = iota
	// Warn lets the operation proceed but records a message.
	Warn
	// Block rejects the operation.
	Block
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Warn:
		return "warn"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// Decision is a verdict plus an optional human-readable message.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Message string  `json:"message,omitempty"`
}

// Allowed reports whether the operation may proceed.
func (d Decision) Allowed() bool { return d.Verdict != Block }

// Event describes the filesystem operation being evaluated. Data carries the
// file content for content-inspecting hooks; Schema optionally names the
// schema the content claims to conform to.
type Event struct {
	Op     string `json:"op"`
	Path   string `json:"path"`
	Size   uint64 `json:"size"`
	Data   []byte `json:"data,omitempty"`
	Schema string `json:"schema,omitempty"`
	UID    uint32 `json:"uid"`
	GID    uint32 `json:"gid"`
	PID    uint32 `json:"pid"`
}

// Hook evaluates one event. Higher-priority hooks run first.
type Hook interface {
	Name() string
	Priority() int
	Execute(ctx context.Context, ev *Event) (Decision, error)
}

// Engine holds the registered hooks and runs them in priority order.
type Engine struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewEngine returns an empty hook engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Register adds a hook. Hooks with equal priority run in registration order.
func (e *Engine) Register(h Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, h)
	sort.SliceStable(e.hooks, func(i, j int) bool {
		return e.hooks[i].Priority() > e.hooks[j].Priority()
	})
}

// Hooks returns the registered hooks in execution order.
func (e *Engine) Hooks() []Hook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Hook, len(e.hooks))
	copy(out, e.hooks)
	return out
}

// Run evaluates every hook against the event and returns the most severe
// decision. A Block short-circuits the remaining hooks. A hook error is
// logged and treated as Allow so a broken hook cannot wedge the filesystem.
func (e *Engine) Run(ctx context.Context, ev *Event) Decision {
	e.mu.RLock()
	hooks := e.hooks
	e.mu.RUnlock()

	result := Decision{Verdict: Allow}
	for _, h := range hooks {
		hookCtx, span := telemetry.StartHookSpan(ctx, h.Name(), telemetry.Path(ev.Path))
		decision, err := h.Execute(hookCtx, ev)
		span.SetAttributes(telemetry.HookDecision(decision.Verdict.String()))
		span.End()
		if err != nil {
			logger.Error("hook execution failed",
				"hook", h.Name(),
				"op", ev.Op,
				"path", ev.Path,
				logger.KeyError, err)
			continue
		}
		switch decision.Verdict {
		case Block:
			logger.Info("hook blocked operation",
				"hook", h.Name(),
				"op", ev.Op,
				"path", ev.Path,
				"message", decision.Message)
			return decision
		case Warn:
			logger.Warn("hook warning",
				"hook", h.Name(),
				"op", ev.Op,
				"path", ev.Path,
				"message", decision.Message)
			if result.Verdict == Allow {
				result = decision
			}
		}
	}
	return result
}
