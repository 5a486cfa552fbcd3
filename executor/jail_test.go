package executor

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/projecteru2/cocoon/types"
)

func TestJailAcceptsDescendant(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "svc", "api")
	got, err := jail(sub, root)
	if err != nil {
		t.Fatalf("jail: %v", err)
	}
	want, _ := filepath.Abs(sub)
	if got != want {
		t.Errorf("jail() = %q, want %q", got, want)
	}
}

func TestJailRejectsEscape(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(root, "..", "elsewhere")
	_, err := jail(outside, root)
	var opErr *types.OpError
	if !errors.As(err, &opErr) || opErr.Kind != types.ErrPathJailing {
		t.Fatalf("expected ErrPathJailing, got %v", err)
	}
}

func TestJailAcceptsRootItself(t *testing.T) {
	// root resolved against itself is a valid ("." relative) descendant.
	root := t.TempDir()
	got, err := jail(root, root)
	if err != nil {
		t.Fatalf("jail(root, root) should succeed: %v", err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("jail(root, root) = %q, want %q", got, want)
	}
}

func TestJailRejectsSiblingDirWithSharedPrefix(t *testing.T) {
	root := t.TempDir()
	sibling := root + "-sibling"
	_, err := jail(sibling, root)
	var opErr *types.OpError
	if !errors.As(err, &opErr) || opErr.Kind != types.ErrPathJailing {
		t.Fatalf("expected a string-prefix-only sibling to be rejected, got %v", err)
	}
}
