// Package wslock implements the Workspace Lock: advisory, PID-stamped
// mutual exclusion over a project directory, so at most one operation runs
// against a given workspace at a time, and a dead holder is distinguishable
// from a live one.
package wslock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/projecteru2/cocoon/lock/flock"
	"github.com/projecteru2/cocoon/types"
	"github.com/projecteru2/cocoon/utils"
)

// FileName is the lock file's name within a project directory. It both
// carries the OS-level advisory lock and, while held, the holder's PID in
// decimal — a single file serves as both the liveness signal and the PID
// history a recovery sweep consults.
const FileName = ".buildopd.lock"

// Path returns the lock file path for project directory dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Lock guards a single project directory. It is safe to create a new Lock
// per acquisition attempt; state lives entirely in the lock file.
type Lock struct {
	dir  string
	path string
	fl   *flock.Lock
}

// New returns a Lock for the project directory dir.
func New(dir string) *Lock {
	path := Path(dir)
	return &Lock{dir: dir, path: path, fl: flock.New(path)}
}

// TryAcquire attempts a non-blocking acquisition, stamping the current
// process's PID into the lock file (truncating prior contents) on
// success. If the lock is already held by a live process, it returns a
// workspace_busy OpError naming the lock path.
func (l *Lock) TryAcquire(ctx context.Context) error {
	ok, err := l.fl.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("acquire workspace lock %s: %w", l.path, err)
	}
	if !ok {
		return types.NewOpError(types.ErrWorkspaceBusy, fmt.Errorf("workspace lock %s is held by %s", l.path, l.holderDescription()))
	}
	if err := utils.WritePIDFile(l.path, os.Getpid()); err != nil {
		_ = l.fl.Unlock(ctx)
		return fmt.Errorf("stamp pid into lock file %s: %w", l.path, err)
	}
	return nil
}

// Release releases the held lock. The file itself is left in place — its
// PID content remains readable by a later recovery sweep — only the OS
// advisory lock is dropped.
func (l *Lock) Release(ctx context.Context) error {
	if err := l.fl.Unlock(ctx); err != nil {
		return fmt.Errorf("release workspace lock %s: %w", l.path, err)
	}
	return nil
}

// HolderPID reads the PID currently recorded in the lock file, if any.
// ok is false if no lock file has ever been written for this workspace.
func (l *Lock) HolderPID() (pid int, ok bool, err error) {
	pid, err = utils.ReadPIDFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return pid, true, nil
}

// holderDescription reports who (as of the last write) holds the lock,
// for a more actionable busy error. Best-effort.
func (l *Lock) holderDescription() string {
	pid, ok, err := l.HolderPID()
	if err != nil || !ok {
		return "unknown holder"
	}
	if utils.IsProcessAlive(pid) {
		return fmt.Sprintf("pid %d", pid)
	}
	return fmt.Sprintf("pid %d (not running; candidate for recovery)", pid)
}

// Held reports whether the workspace lock is currently held by any live
// process, without disturbing the current holder (a failed non-blocking
// probe means held; a successful one is immediately released).
func (l *Lock) Held(ctx context.Context) (bool, error) {
	ok, err := l.fl.TryLock(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		_ = l.fl.Unlock(ctx)
		return false, nil
	}
	return true, nil
}

// IsZombie reports whether the workspace's recorded PID names a process
// that is no longer alive while the flock itself is uncontended — i.e.
// the prior holder crashed before releasing cleanly. Used by
// Housekeeper's zombie-recovery sweep: if TryLock now succeeds, the
// holder is gone and the corresponding running Record can be safely
// flipped to failed.
func (l *Lock) IsZombie(ctx context.Context) (bool, int, error) {
	pid, ok, err := l.HolderPID()
	if err != nil || !ok {
		return false, pid, err
	}
	if utils.IsProcessAlive(pid) {
		return false, pid, nil
	}
	acquired, err := l.fl.TryLock(ctx)
	if err != nil {
		return false, pid, err
	}
	if acquired {
		_ = l.fl.Unlock(ctx)
	}
	return acquired, pid, nil
}
