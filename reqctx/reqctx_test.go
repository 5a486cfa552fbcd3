package reqctx

import (
	"context"
	"testing"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	if got := Actor(ctx); got != "unknown" {
		t.Errorf("Actor(bare ctx) = %q, want unknown", got)
	}
	if got := Session(ctx); got != "" {
		t.Errorf("Session(bare ctx) = %q, want empty", got)
	}
}

func TestWithActorAndSession(t *testing.T) {
	ctx := WithSession(WithActor(context.Background(), "alice"), "sess-1")
	if got := Actor(ctx); got != "alice" {
		t.Errorf("Actor = %q, want alice", got)
	}
	if got := Session(ctx); got != "sess-1" {
		t.Errorf("Session = %q, want sess-1", got)
	}
}
