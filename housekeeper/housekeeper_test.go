package housekeeper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/projecteru2/cocoon/auditlog"
	"github.com/projecteru2/cocoon/store"
	"github.com/projecteru2/cocoon/types"
	"github.com/projecteru2/cocoon/wslock"
)

func newTestHousekeeper(t *testing.T) (*Housekeeper, store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.OpenJSON(filepath.Join(dir, "store.json.lock"), filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}
	instanceID, err := st.InstanceID(context.Background())
	if err != nil {
		t.Fatalf("InstanceID: %v", err)
	}
	auditPath := filepath.Join(dir, "audit.jsonl")
	audit := auditlog.New(auditPath, auditPath+".lock", instanceID)

	sandboxDir := filepath.Join(dir, "sandbox")
	if err := os.MkdirAll(sandboxDir, 0o755); err != nil {
		t.Fatalf("mkdir sandbox: %v", err)
	}

	return &Housekeeper{
		Store:      st,
		Audit:      audit,
		SandboxDir: sandboxDir,
		MaxAge:     time.Hour,
	}, st
}

func TestRunRecoversZombieOperation(t *testing.T) {
	h, st := newTestHousekeeper(t)
	ctx := context.Background()

	workspace := t.TempDir()
	// Fabricate a crashed holder: a lock file naming a dead PID, with no
	// flock actually held.
	if err := os.WriteFile(wslock.Path(workspace), []byte("999999\n"), 0o600); err != nil {
		t.Fatalf("seed lock file: %v", err)
	}

	rec := &types.Record{
		OpID:          "op-1",
		Verb:          types.VerbBuild,
		WorkspaceDir:  workspace,
		Status:        types.StatusRunning,
		StartedAt:     types.Now(),
		LastAttemptAt: types.Now(),
	}
	if err := st.Upsert(ctx, rec.OpID, rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if err := h.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, ok, err := st.Get(ctx, "op-1")
	if err != nil || !ok {
		t.Fatalf("Get after Run: ok=%v err=%v", ok, err)
	}
	if got.Status != types.StatusFailed {
		t.Errorf("Status = %v, want failed after zombie recovery", got.Status)
	}
	if got.Result == nil || got.Result.Step != "recover_zombies" {
		t.Errorf("Result = %+v, want Step=recover_zombies", got.Result)
	}
}

func TestRunLeavesLiveRunningOperationAlone(t *testing.T) {
	h, st := newTestHousekeeper(t)
	ctx := context.Background()

	workspace := t.TempDir()
	l := wslock.New(workspace)
	if err := l.TryAcquire(ctx); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer l.Release(ctx) //nolint:errcheck

	rec := &types.Record{
		OpID:          "op-live",
		Verb:          types.VerbBuild,
		WorkspaceDir:  workspace,
		Status:        types.StatusRunning,
		StartedAt:     types.Now(),
		LastAttemptAt: types.Now(),
	}
	if err := st.Upsert(ctx, rec.OpID, rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if err := h.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, ok, err := st.Get(ctx, "op-live")
	if err != nil || !ok {
		t.Fatalf("Get after Run: ok=%v err=%v", ok, err)
	}
	if got.Status != types.StatusRunning {
		t.Errorf("Status = %v, want still running (lock genuinely held)", got.Status)
	}
}

func TestRunPrunesStaleInactiveSandbox(t *testing.T) {
	h, _ := newTestHousekeeper(t)
	ctx := context.Background()

	stale := filepath.Join(h.SandboxDir, "git-source-stale")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir stale: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := h.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("expected stale, inactive sandbox entry to be pruned")
	}
}

func TestRunKeepsYoungSandboxEntries(t *testing.T) {
	h, _ := newTestHousekeeper(t)
	ctx := context.Background()

	fresh := filepath.Join(h.SandboxDir, "git-source-fresh")
	if err := os.MkdirAll(fresh, 0o755); err != nil {
		t.Fatalf("mkdir fresh: %v", err)
	}

	if err := h.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("expected a freshly created sandbox entry to survive one cycle: %v", err)
	}
}
