package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/projecteru2/cocoon/types"
)

func TestBoltStoreUpsertGetListAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close() //nolint:errcheck
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "op-1"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	rec := &types.Record{OpID: "op-1", Verb: types.VerbPackage, Status: types.StatusSucceeded}
	if err := s.Upsert(ctx, "op-1", rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := s.Get(ctx, "op-1")
	if err != nil || !ok {
		t.Fatalf("Get after upsert: ok=%v err=%v", ok, err)
	}
	if got.Verb != types.VerbPackage || got.Status != types.StatusSucceeded {
		t.Errorf("Get returned unexpected record: %+v", got)
	}

	all, err := s.ListAll(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("ListAll = %v, err=%v", all, err)
	}

	id, err := s.InstanceID(ctx)
	if err != nil || id == "" {
		t.Fatalf("InstanceID = %q, err=%v", id, err)
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Upsert(ctx, "op-1", &types.Record{OpID: "op-1", Verb: types.VerbTest}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	id1, err := s1.InstanceID(ctx)
	if err != nil {
		t.Fatalf("InstanceID: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer s2.Close() //nolint:errcheck

	rec, ok, err := s2.Get(ctx, "op-1")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if rec.Verb != types.VerbTest {
		t.Errorf("reopened record Verb = %q", rec.Verb)
	}
	id2, err := s2.InstanceID(ctx)
	if err != nil || id2 != id1 {
		t.Errorf("InstanceID changed across reopen: %q -> %q", id1, id2)
	}
}
