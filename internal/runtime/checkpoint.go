package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/toolregistry"
)

// gitRun executes a git command rooted at dir, grounded on the teacher's
// checkpoint.GitRun but context-aware and scoped to an explicit directory
// rather than the process cwd.
func gitRun(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = out
		}
		return out, fmt.Errorf("git %s: %s: %w", args[0], errMsg, err)
	}
	return out, nil
}

func gitIsRepo(ctx context.Context, dir string) bool {
	_, err := gitRun(ctx, dir, "rev-parse", "--show-toplevel")
	return err == nil
}

// gitStashCreate captures changes to tracked files only: git stash create
// has no option for untracked files, and prints nothing when no tracked
// file differs from HEAD.
func gitStashCreate(ctx context.Context, dir string) (string, error) {
	return gitRun(ctx, dir, "stash", "create")
}

func gitStashApply(ctx context.Context, dir, sha string) error {
	_, err := gitRun(ctx, dir, "stash", "apply", "--index", sha)
	return err
}

// checkpointLedger tracks checkpoints per agent across the process lifetime.
// Per-agent rather than per-session since the Agent Runtime itself has no
// session concept (that lives one layer up, in the Controller).
type checkpointLedger struct {
	mu    sync.Mutex
	items map[string][]domain.Checkpoint
}

func newCheckpointLedger() *checkpointLedger {
	return &checkpointLedger{items: map[string][]domain.Checkpoint{}}
}

func (l *checkpointLedger) add(agent string, cp domain.Checkpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[agent] = append(l.items[agent], cp)
}

// List returns agent's recorded checkpoints, oldest first.
func (l *checkpointLedger) List(agent string) []domain.Checkpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Checkpoint(nil), l.items[agent]...)
}

// snapshotCheckpoint stashes the working tree (without touching the real
// stash list or the tree itself) before a tool-executing loop iteration.
// A non-git directory or a git error is not fatal to the turn — checkpoints
// are best-effort safety infrastructure, not a turn precondition.
func (r *Runtime) snapshotCheckpoint(ctx context.Context, agentName string, turnNumber int) {
	if r.cfg.WorkDir == "" || !gitIsRepo(ctx, r.cfg.WorkDir) {
		return
	}
	sha, err := gitStashCreate(ctx, r.cfg.WorkDir)
	if err != nil {
		return
	}
	r.checkpoints.add(agentName, domain.Checkpoint{TurnNumber: turnNumber, SHA: sha, IsClean: sha == ""})
}

// checkpointRestoreArgs is the checkpoint_restore tool's argument shape.
type checkpointRestoreArgs struct {
	SHA string `json:"sha"`
}

var checkpointRestoreSchema = map[string]any{
	"type":     "object",
	"required": []string{"sha"},
	"properties": map[string]any{
		"sha": map[string]any{"type": "string", "description": "the checkpoint SHA to restore"},
	},
}

// RegisterCheckpointRestore wires the checkpoint_restore built-in, exposed
// to developer-visibility agents per the supplemented git-checkpoint
// feature: rolling back a tool call's working-tree changes.
func (r *Runtime) RegisterCheckpointRestore(registry *toolregistry.Registry) error {
	spec := domain.ToolSpec{
		Name:        "checkpoint_restore",
		Description: "Restore the working tree to a prior git checkpoint SHA captured before a tool-executing turn.",
		JSONSchema:  checkpointRestoreSchema,
		Origin:      domain.BuiltinOrigin(),
	}
	return registry.Register(spec, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a checkpointRestoreArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		if a.SHA == "" {
			return json.Marshal("nothing to restore: working tree was already clean at that checkpoint")
		}
		if err := gitStashApply(ctx, r.cfg.WorkDir, a.SHA); err != nil {
			return nil, err
		}
		return json.Marshal(fmt.Sprintf("restored working tree to checkpoint %s", a.SHA))
	})
}
