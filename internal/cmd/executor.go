package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// manifestExecutor runs manifest tasks: entries with a command execute it
// as a subprocess, entries without one sleep for their estimated duration
// so that plans can be exercised without side effects. DryRun forces the
// simulated path for every task.
type manifestExecutor struct {
	manifest *Manifest
	dryRun   bool
}

func newManifestExecutor(m *Manifest, dryRun bool) *manifestExecutor {
	return &manifestExecutor{manifest: m, dryRun: dryRun}
}

// Execute implements task.Executor.
func (e *manifestExecutor) Execute(ctx context.Context, t *task.Task) (any, error) {
	argv := e.manifest.commandOf(t.ID)
	if e.dryRun || len(argv) == 0 {
		return e.simulate(ctx, t)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w: %s", argv[0], err, out.String())
	}
	return out.String(), nil
}

func (e *manifestExecutor) simulate(ctx context.Context, t *task.Task) (any, error) {
	if t.EstimatedDuration <= 0 {
		return t.ID, ctx.Err()
	}
	timer := time.NewTimer(t.EstimatedDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return t.ID, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
