package gc

import (
	"context"

	"github.com/projecteru2/cocoon/lock"
)

// Module describes one participant in a GC cycle. S is the concrete
// snapshot type this module's ReadDB produces; the Orchestrator erases it
// to `any` when making it available to other modules' Resolve.
type Module[S any] struct {
	Name string

	// Locker coordinates with whatever active work also touches this
	// module's resource. TryLock returning false means the module is
	// busy; the Orchestrator skips it for this cycle and retries next
	// time.
	Locker lock.Locker

	// ReadDB reads the module's current state. Called while Locker is
	// held; must not re-acquire it.
	ReadDB func(ctx context.Context) (S, error)

	// Resolve analyses this module's own typed snapshot plus every
	// module's snapshot (including its own) erased to `any`, and
	// returns the resource ids to delete. Called with no lock held.
	Resolve func(snap S, all map[string]any) []string

	// Collect deletes the given ids. Called while Locker is held; must
	// not re-acquire it. Called even with a nil/empty ids slice so a
	// module can use the pass for unconditional housekeeping.
	Collect func(ctx context.Context, ids []string) error
}

func (m Module[S]) getName() string           { return m.Name }
func (m Module[S]) getLocker() lock.Locker    { return m.Locker }
func (m Module[S]) readSnapshot(ctx context.Context) (any, error) {
	return m.ReadDB(ctx)
}

func (m Module[S]) resolveTargets(snap any, all map[string]any) []string {
	typed, ok := snap.(S)
	if !ok {
		return nil
	}
	return m.Resolve(typed, all)
}

func (m Module[S]) collect(ctx context.Context, ids []string) error {
	return m.Collect(ctx, ids)
}
