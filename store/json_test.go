package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projecteru2/cocoon/types"
)

func TestJSONStoreUpsertGetListAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s, err := OpenJSON(path+".lock", path)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "op-1")
	require.NoError(t, err)
	require.False(t, ok, "Get on an empty store should report no record")

	rec := &types.Record{OpID: "op-1", Verb: types.VerbBuild, Status: types.StatusRunning}
	require.NoError(t, s.Upsert(ctx, "op-1", rec))

	got, ok, err := s.Get(ctx, "op-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.VerbBuild, got.Verb)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	id, err := s.InstanceID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
}

func TestJSONStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	ctx := context.Background()

	s1, err := OpenJSON(path+".lock", path)
	require.NoError(t, err)
	require.NoError(t, s1.Upsert(ctx, "op-1", &types.Record{OpID: "op-1", Verb: types.VerbDoctor}))
	id1, err := s1.InstanceID(ctx)
	require.NoError(t, err)

	s2, err := OpenJSON(path+".lock", path)
	require.NoError(t, err)
	rec, ok, err := s2.Get(ctx, "op-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.VerbDoctor, rec.Verb)

	id2, err := s2.InstanceID(ctx)
	require.NoError(t, err)
	require.Equal(t, id1, id2, "instance id must be stable across reopen")
}

func TestJSONStoreRejectsUnsupportedSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version":"buildopd.store.v99","operations":{}}`), 0o600))

	_, err := OpenJSON(path+".lock", path)
	require.Error(t, err, "an unrecognized future schema version must be rejected, not silently adopted")
}
