// Package store implements the Operation Store: a durable,
// concurrency-safe mapping from operation id to operation record, with
// schema versioning and migration. Two backends satisfy the same
// contract — BoltStore (transactional, production default) and JSONStore
// (flock-protected single document) — per the "union of divergent
// revisions" guidance: the richer, transactional variant is the default,
// the JSON variant stays available for tests and environments without
// cgo-free bbolt support preference.
package store

import (
	"context"

	"github.com/projecteru2/cocoon/types"
)

// SchemaVersion is the current on-disk schema tag. Bump this and extend
// migrate() whenever the Record shape changes in a backwards-incompatible
// way.
const SchemaVersion = "buildopd.store.v1"

// legacySchema is the schema_version tag of the legacy document shape that
// JSONStore migrates forward. A blank schema_version is not treated as
// legacy: it is stamped as a fresh document.
const legacySchema = "legacy.unversioned"

// Store is the contract every backend satisfies: get/upsert/list plus a
// one-time stable daemon identity.
type Store interface {
	// Get returns the record for opID, or ok=false if none exists.
	Get(ctx context.Context, opID string) (rec *types.Record, ok bool, err error)
	// Upsert persists rec under opID, creating or replacing the prior
	// record. Writes are atomic; concurrent readers never observe a torn
	// record.
	Upsert(ctx context.Context, opID string, rec *types.Record) error
	// ListAll returns a snapshot of every record, consistent with some
	// serial order of completed writes. It need not reflect writes still
	// in flight.
	ListAll(ctx context.Context) ([]*types.Record, error)
	// InstanceID returns this store's stable daemon identity, created on
	// first initialization and unchanged thereafter.
	InstanceID(ctx context.Context) (string, error)
}
