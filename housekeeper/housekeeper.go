// Package housekeeper implements the two recovery/maintenance sweeps that
// keep the daemon healthy across restarts: zombie recovery (operations
// left "running" by a crashed holder) and sandbox pruning (stale git
// clone directories). Both are modeled as gc.Module participants in one
// Orchestrator cycle, adapted from the teacher's generic GC machinery to
// this domain's resources.
package housekeeper

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/projecteru2/cocoon/auditlog"
	"github.com/projecteru2/cocoon/gc"
	"github.com/projecteru2/cocoon/lock"
	"github.com/projecteru2/cocoon/store"
	"github.com/projecteru2/cocoon/types"
	"github.com/projecteru2/cocoon/wslock"
)

// Housekeeper owns the recovery and pruning sweeps.
type Housekeeper struct {
	Store      store.Store
	Audit      *auditlog.AuditLog
	SandboxDir string
	MaxAge     time.Duration
}

// noopLocker lets a gc.Module participate without module-level exclusion
// when the resource's own concurrency safety (the Store, or a per-entry
// workspace lock probed inside Resolve/Collect) already covers it.
type noopLocker struct{}

func (noopLocker) Lock(context.Context) error            { return nil }
func (noopLocker) Unlock(context.Context) error          { return nil }
func (noopLocker) TryLock(context.Context) (bool, error) { return true, nil }

var _ lock.Locker = noopLocker{}

// Run executes one housekeeping cycle: zombie recovery followed by
// sandbox pruning, via a single gc.Orchestrator pass.
func (h *Housekeeper) Run(ctx context.Context) error {
	o := gc.New()
	gc.Register(o, h.zombieModule(ctx))
	gc.Register(o, h.sandboxModule(ctx))
	return o.Run(ctx)
}

// zombieModule implements recover_zombies: a record left "running" whose
// workspace lock is no longer held by a live process is reclassified as
// failed, per spec's crash-recovery invariant.
func (h *Housekeeper) zombieModule(ctx context.Context) gc.Module[[]*types.Record] {
	return gc.Module[[]*types.Record]{
		Name:   "zombies",
		Locker: noopLocker{},
		ReadDB: func(context.Context) ([]*types.Record, error) {
			all, err := h.Store.ListAll(ctx)
			if err != nil {
				return nil, err
			}
			running := make([]*types.Record, 0, len(all))
			for _, rec := range all {
				if rec.Status == types.StatusRunning {
					running = append(running, rec)
				}
			}
			return running, nil
		},
		Resolve: func(running []*types.Record, _ map[string]any) []string {
			var zombies []string
			for _, rec := range running {
				if rec.WorkspaceDir == "" {
					continue
				}
				isZombie, _, err := wslock.New(rec.WorkspaceDir).IsZombie(ctx)
				if err == nil && isZombie {
					zombies = append(zombies, rec.OpID)
				}
			}
			return zombies
		},
		Collect: func(_ context.Context, ids []string) error {
			for _, opID := range ids {
				rec, ok, err := h.Store.Get(ctx, opID)
				if err != nil {
					return err
				}
				if !ok || rec.Status != types.StatusRunning {
					continue
				}
				rec.Status = types.StatusFailed
				rec.FinishedAt = types.Now()
				rec.Result = &types.Result{Error: "stale_lock: prior holder process no longer alive", Step: "recover_zombies"}
				if err := h.Store.Upsert(ctx, opID, rec); err != nil {
					return err
				}
				if err := h.Audit.Emit(ctx, auditlog.EventOperationRecovered, opID, rec.Verb, string(types.StatusFailed), "recover_zombies", nil); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// sandboxEntries is the snapshot type for the sandbox-pruning module: the
// set of workspace directories currently claimed by a running operation,
// which pruning must never touch regardless of age.
type sandboxEntries struct {
	activeDirs map[string]struct{}
}

// sandboxModule implements cleanup_sandbox: entries under SandboxDir that
// are not an active workspace, are older than MaxAge, and whose lock file
// (if any) is not currently held, are removed.
func (h *Housekeeper) sandboxModule(ctx context.Context) gc.Module[sandboxEntries] {
	return gc.Module[sandboxEntries]{
		Name:   "sandbox",
		Locker: noopLocker{},
		ReadDB: func(context.Context) (sandboxEntries, error) {
			all, err := h.Store.ListAll(ctx)
			if err != nil {
				return sandboxEntries{}, err
			}
			active := make(map[string]struct{})
			for _, rec := range all {
				if rec.Status == types.StatusRunning && rec.WorkspaceDir != "" {
					active[filepath.Clean(rec.WorkspaceDir)] = struct{}{}
				}
			}
			return sandboxEntries{activeDirs: active}, nil
		},
		Resolve: func(sandboxEntries, map[string]any) []string { return nil },
		Collect: func(_ context.Context, _ []string) error {
			entries, err := os.ReadDir(h.SandboxDir)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}

			all, err := h.Store.ListAll(ctx)
			if err != nil {
				return err
			}
			active := make(map[string]struct{})
			for _, rec := range all {
				if rec.Status == types.StatusRunning && rec.WorkspaceDir != "" {
					active[filepath.Clean(rec.WorkspaceDir)] = struct{}{}
				}
			}

			pruned := 0
			cutoff := time.Now().Add(-h.MaxAge)
			for _, e := range entries {
				if !e.IsDir() {
					continue
				}
				path := filepath.Join(h.SandboxDir, e.Name())
				if _, isActive := active[filepath.Clean(path)]; isActive {
					continue
				}
				info, err := e.Info()
				if err != nil || info.ModTime().After(cutoff) {
					continue
				}
				if held, err := wslock.New(path).Held(ctx); err != nil || held {
					continue
				}
				if err := os.RemoveAll(path); err == nil {
					pruned++
				}
			}

			if pruned > 0 {
				return h.Audit.Emit(ctx, auditlog.EventSystemCleanup, "", "", "", "", map[string]any{"pruned": pruned})
			}
			return nil
		},
	}
}
