package wslock

import (
	"context"
	"os"
	"testing"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l := New(dir)
	if err := l.TryAcquire(ctx); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}

	pid, ok, err := l.HolderPID()
	if err != nil || !ok {
		t.Fatalf("HolderPID after acquire: pid=%d ok=%v err=%v", pid, ok, err)
	}
	if pid != os.Getpid() {
		t.Errorf("HolderPID = %d, want %d", pid, os.Getpid())
	}

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestSecondAcquireFailsWhileHeld(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := New(dir)
	if err := first.TryAcquire(ctx); err != nil {
		t.Fatalf("first TryAcquire: %v", err)
	}
	defer first.Release(ctx) //nolint:errcheck

	second := New(dir)
	err := second.TryAcquire(ctx)
	if err == nil {
		t.Fatal("expected second acquisition to fail while the first holds the lock")
	}
}

func TestHeldReportsLiveness(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l := New(dir)
	held, err := l.Held(ctx)
	if err != nil {
		t.Fatalf("Held on unlocked workspace: %v", err)
	}
	if held {
		t.Fatal("a never-acquired workspace should not report held")
	}

	if err := l.TryAcquire(ctx); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer l.Release(ctx) //nolint:errcheck

	other := New(dir)
	held, err = other.Held(ctx)
	if err != nil {
		t.Fatalf("Held while locked: %v", err)
	}
	if !held {
		t.Fatal("Held should report true while another handle holds the lock")
	}
}

func TestHolderPIDMissingFile(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	_, ok, err := l.HolderPID()
	if err != nil {
		t.Fatalf("HolderPID on a never-acquired workspace: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when no lock file has ever been written")
	}
}

func TestIsZombieDetectsDeadHolder(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// Fabricate the on-disk state a crashed holder would leave behind: a
	// PID file naming a process that is certainly not alive, with no flock
	// actually held (the crash released the OS-level lock automatically).
	deadPID := 999999
	if err := os.WriteFile(Path(dir), []byte("999999\n"), 0o600); err != nil {
		t.Fatalf("seed lock file: %v", err)
	}

	l := New(dir)
	isZombie, pid, err := l.IsZombie(ctx)
	if err != nil {
		t.Fatalf("IsZombie: %v", err)
	}
	if !isZombie {
		t.Fatal("expected a dead-PID, uncontended lock to be reported as a zombie")
	}
	if pid != deadPID {
		t.Errorf("IsZombie pid = %d, want %d", pid, deadPID)
	}

	// IsZombie must release the flock it took to probe, so a real
	// acquisition still succeeds afterward.
	if err := l.TryAcquire(ctx); err != nil {
		t.Fatalf("TryAcquire after IsZombie probe: %v", err)
	}
}

func TestIsZombieFalseWhenHeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l := New(dir)
	if err := l.TryAcquire(ctx); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer l.Release(ctx) //nolint:errcheck

	probe := New(dir)
	isZombie, _, err := probe.IsZombie(ctx)
	if err != nil {
		t.Fatalf("IsZombie: %v", err)
	}
	if isZombie {
		t.Fatal("a lock held by this (live) process must not be reported as a zombie")
	}
}
