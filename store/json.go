package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/projecteru2/cocoon/storage/jsonfile"
	"github.com/projecteru2/cocoon/types"
)

// document is the whole-file shape persisted by JSONStore.
type document struct {
	SchemaVersion string                   `json:"schema_version"`
	InstanceID    string                   `json:"instance_id"`
	Operations    map[string]*types.Record `json:"operations"`
	Migration     *migrationNote           `json:"migration,omitempty"`
}

type migrationNote struct {
	FromSchema string `json:"from_schema"`
	MigratedAt int64  `json:"migrated_at"`
}

// Init implements storage.Initer: called by jsonfile.Store before handing
// the document to a With/Update callback, so a freshly-created or
// pre-migration document always has a non-nil Operations map.
func (d *document) Init() {
	if d.Operations == nil {
		d.Operations = make(map[string]*types.Record)
	}
}

// JSONStore is the flock-protected, single-document Operation Store
// backend, adapted from the teacher's generic storage.Store[T].
type JSONStore struct {
	inner *jsonfile.Store[document]
}

var _ Store = (*JSONStore)(nil)

// OpenJSON opens (creating if absent) a JSONStore backed by a document at
// filePath, guarded by an flock on lockPath.
func OpenJSON(lockPath, filePath string) (*JSONStore, error) {
	s := &JSONStore{inner: jsonfile.New[document](lockPath, filePath)}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) init() error {
	return s.inner.Update(context.Background(), func(d *document) error {
		return migrate(d)
	})
}

// migrate upgrades d in place to SchemaVersion, recording provenance when
// migrating from the legacy unversioned shape. A document with no schema
// tag at all — the shape produced before schema versioning existed — is
// indistinguishable from a brand-new document at this layer, so a blank
// Operations map with no SchemaVersion is treated as fresh, not legacy;
// legacy detection keys on SchemaVersion equal to legacySchema, and any
// other unrecognized tag is rejected.
func migrate(d *document) error {
	switch d.SchemaVersion {
	case SchemaVersion:
		if d.InstanceID == "" {
			d.InstanceID = uuid.NewString()
		}
		return nil
	case "":
		d.SchemaVersion = SchemaVersion
		if d.InstanceID == "" {
			d.InstanceID = uuid.NewString()
		}
		return nil
	case legacySchema:
		d.SchemaVersion = SchemaVersion
		if d.InstanceID == "" {
			d.InstanceID = uuid.NewString()
		}
		d.Migration = &migrationNote{FromSchema: legacySchema, MigratedAt: types.Now()}
		return nil
	default:
		return fmt.Errorf("unsupported store schema %q: refusing to open", d.SchemaVersion)
	}
}

// Get implements Store.
func (s *JSONStore) Get(ctx context.Context, opID string) (*types.Record, bool, error) {
	var rec *types.Record
	err := s.inner.With(ctx, func(d *document) error {
		rec = d.Operations[opID]
		return nil
	})
	return rec, rec != nil, err
}

// Upsert implements Store.
func (s *JSONStore) Upsert(ctx context.Context, opID string, rec *types.Record) error {
	return s.inner.Update(ctx, func(d *document) error {
		d.Operations[opID] = rec
		return nil
	})
}

// ListAll implements Store.
func (s *JSONStore) ListAll(ctx context.Context) ([]*types.Record, error) {
	var out []*types.Record
	err := s.inner.With(ctx, func(d *document) error {
		out = make([]*types.Record, 0, len(d.Operations))
		for _, rec := range d.Operations {
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// InstanceID implements Store.
func (s *JSONStore) InstanceID(ctx context.Context) (string, error) {
	var id string
	err := s.inner.With(ctx, func(d *document) error {
		id = d.InstanceID
		return nil
	})
	return id, err
}
