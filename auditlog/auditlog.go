// Package auditlog implements the Audit Log: an append-only, ordered JSONL
// event stream describing every lifecycle transition an operation passes
// through. It is write-mostly and strictly separate from the Operation
// Store — the store holds latest-state truth, the audit log holds history,
// and neither is reconstructible from the other.
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/projecteru2/cocoon/lock"
	"github.com/projecteru2/cocoon/lock/flock"
	"github.com/projecteru2/cocoon/reqctx"
	"github.com/projecteru2/cocoon/types"
)

// Event types emitted across an operation's lifecycle. Names are dotted,
// matching the "<noun>.<transition>" convention used throughout.
const (
	EventOperationStarted          = "operation.started"
	EventOperationCacheInvalidated = "operation.cache_invalidated"
	EventOperationCancelled        = "operation.cancelled"
	EventOperationRecovered        = "operation.recovered"
	EventOperationFailed           = "operation.failed"
	EventOperationSucceeded        = "operation.succeeded"
	EventStepStarted               = "step.started"
	EventStepSucceeded             = "step.succeeded"
	EventStepFailed                = "step.failed"
	EventSourceFetchStarted        = "source.fetch.started"
	EventSourceFetchSucceeded      = "source.fetch.succeeded"
	EventSourceFetchFailed         = "source.fetch.failed"
	EventSourceArtifacts           = "source.artifacts"
	EventSystemRollback            = "system.rollback"
	EventSystemCleanup             = "system.cleanup"
	EventThrottled                 = "operation.throttled"
)

// Event is one line of the audit log.
type Event struct {
	EventID   string         `json:"event_id"`
	Timestamp int64          `json:"timestamp_ms"`
	Source    string         `json:"source"`
	Actor     string         `json:"actor"`
	SessionID string         `json:"session_id,omitempty"`
	EventType string         `json:"event_type"`
	OpID      string         `json:"op_id,omitempty"`
	Verb      string         `json:"verb,omitempty"`
	Status    string         `json:"status,omitempty"`
	Step      string         `json:"step,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditLog appends Events to a JSONL file, serializing writers with an
// flock so a crash mid-append can never interleave two events' bytes.
type AuditLog struct {
	path       string
	instanceID string
	mu         lock.Locker
}

// New returns an AuditLog appending to path, identifying itself as
// instanceID (the daemon's stable store instance id) in every event's
// source field. lockPath is typically path + ".lock".
func New(path, lockPath, instanceID string) *AuditLog {
	return &AuditLog{
		path:       path,
		instanceID: instanceID,
		mu:         flock.New(lockPath),
	}
}

// Emit appends one event to the log, deriving actor/session from ctx and
// stamping a fresh event id and millisecond timestamp. details may be nil.
func (a *AuditLog) Emit(ctx context.Context, eventType string, opID string, verb types.Verb, status, step string, details map[string]any) error {
	ev := Event{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Source:    a.instanceID,
		Actor:     reqctx.Actor(ctx),
		SessionID: reqctx.Session(ctx),
		EventType: eventType,
		OpID:      opID,
		Verb:      string(verb),
		Status:    status,
		Step:      step,
		Details:   details,
	}
	return lock.WithLock(ctx, a.mu, func() error {
		return a.append(ev)
	})
}

func (a *AuditLog) append(ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", a.path, err)
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append audit log %s: %w", a.path, err)
	}
	return f.Sync()
}
