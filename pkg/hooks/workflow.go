package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/driftfs/driftfs/internal/logger"
)

// WorkflowHook spawns an external command for every event, writing the
// event as JSON to its stdin. The command runs in the background and its
// outcome never affects the triggering operation, so the hook always
// returns Allow.
type WorkflowHook struct {
	command string
	args    []string
}

// NewWorkflowHook returns a hook running command with args on each event.
func NewWorkflowHook(command string, args ...string) *WorkflowHook {
	return &WorkflowHook{command: command, args: args}
}

// Name implements Hook.
func (w *WorkflowHook) Name() string { return "workflow" }

// Priority implements Hook. Workflows run after validation hooks.
func (w *WorkflowHook) Priority() int { return 50 }

// Execute implements Hook.
func (w *WorkflowHook) Execute(_ context.Context, ev *Event) (Decision, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to encode event: %w", err)
	}

	go func() {
		if err := w.run(payload); err != nil {
			logger.Error("workflow execution failed",
				"command", w.command,
				"op", ev.Op,
				logger.KeyError, err)
		}
	}()

	return Decision{Verdict: Allow}, nil
}

func (w *WorkflowHook) run(payload []byte) error {
	logger.Debug("spawning workflow", "command", w.command)

	cmd := exec.Command(w.command, w.args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%w: %s", err, stderr.String())
		}
		return err
	}
	logger.Debug("workflow completed", "command", w.command)
	return nil
}
