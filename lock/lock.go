package lock

import "context"

// Locker provides mutual exclusion with context support.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	TryLock(ctx context.Context) (bool, error)
}

// WithLock acquires l, runs fn, and releases l unconditionally afterward,
// returning fn's error (or the acquisition error if Lock itself failed).
func WithLock(ctx context.Context, l Locker, fn func() error) error {
	if err := l.Lock(ctx); err != nil {
		return err
	}
	defer l.Unlock(ctx) //nolint:errcheck
	return fn()
}

// WithTryLock attempts a non-blocking acquisition of l. ok is false if the
// lock was already held by someone else; fn is not run in that case.
func WithTryLock(ctx context.Context, l Locker, fn func() error) (ok bool, err error) {
	acquired, err := l.TryLock(ctx)
	if err != nil || !acquired {
		return false, err
	}
	defer l.Unlock(ctx) //nolint:errcheck
	return true, fn()
}

