package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/projecteru2/cocoon/types"
)

var (
	bucketMeta       = []byte("meta")
	bucketOperations = []byte("operations")

	keySchemaVersion = []byte("schema_version")
	keyInstanceID    = []byte("instance_id")
)

// BoltStore is the transactional Operation Store backend, backed by a
// single bbolt database file. It is the production default: writes are
// transactional, so readers never observe a torn record even under
// concurrent access from multiple goroutines within one process. bbolt
// itself serializes writers with a file lock, which also covers the
// multi-process case spec §4.1 requires.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// Open opens (creating if absent) a BoltStore at path and checks the
// schema tag: a missing tag is stamped with SchemaVersion, any other tag
// than SchemaVersion is rejected. There is no legacy migration path here.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	s := &BoltStore{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketOperations); err != nil {
			return fmt.Errorf("create operations bucket: %w", err)
		}

		schema := string(meta.Get(keySchemaVersion))
		switch schema {
		case SchemaVersion:
			// Current schema; nothing to do.
		case "":
			// Fresh store (no meta yet) vs. a legacy unversioned store are
			// indistinguishable at the bbolt layer without a prior file —
			// bolt.Open on a brand-new path always lands here. Treat as
			// fresh: stamp the current schema and a new instance id.
			if err := meta.Put(keySchemaVersion, []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("stamp schema: %w", err)
			}
		default:
			return fmt.Errorf("unsupported store schema %q: refusing to open", schema)
		}

		if meta.Get(keyInstanceID) == nil {
			id := uuid.NewString()
			if err := meta.Put(keyInstanceID, []byte(id)); err != nil {
				return fmt.Errorf("stamp instance id: %w", err)
			}
		}
		return nil
	})
}

// Get implements Store.
func (s *BoltStore) Get(_ context.Context, opID string) (*types.Record, bool, error) {
	var rec *types.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketOperations).Get([]byte(opID))
		if raw == nil {
			return nil
		}
		rec = &types.Record{}
		if err := json.Unmarshal(raw, rec); err != nil {
			return fmt.Errorf("corrupt record %s: %w", opID, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rec, rec != nil, nil
}

// Upsert implements Store.
func (s *BoltStore) Upsert(_ context.Context, opID string, rec *types.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", opID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperations).Put([]byte(opID), data)
	})
}

// ListAll implements Store.
func (s *BoltStore) ListAll(_ context.Context) ([]*types.Record, error) {
	var out []*types.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperations).ForEach(func(k, v []byte) error {
			rec := &types.Record{}
			if err := json.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("corrupt record %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InstanceID implements Store.
func (s *BoltStore) InstanceID(_ context.Context) (string, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		id = string(tx.Bucket(bucketMeta).Get(keyInstanceID))
		return nil
	})
	return id, err
}
