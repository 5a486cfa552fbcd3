// Package executor implements the Executor: the component that drives a
// single operation's Plan through source resolution, path jailing, cache
// lookup, throttling, workspace locking, and the step state machine to a
// terminal record. It owns caching, throttling, rollback, recovery,
// cancellation, and delegates command synthesis to synth.Synthesizer.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/projecteru2/cocoon/auditlog"
	"github.com/projecteru2/cocoon/source"
	"github.com/projecteru2/cocoon/store"
	"github.com/projecteru2/cocoon/synth"
	"github.com/projecteru2/cocoon/types"
	"github.com/projecteru2/cocoon/wslock"
)

// Executor drives Plans to completion. One Executor is shared by every
// concurrent request; per-request state lives entirely in locals and the
// Store, so Run is safe to call concurrently for distinct op ids.
type Executor struct {
	Store       store.Store
	Audit       *auditlog.AuditLog
	Source      *source.Provisioner
	Synth       *synth.Synthesizer
	ProjectRoot string
	VerbTimeout time.Duration
}

// Run drives plan through phases A–E and the step machine, returning the
// terminal (or cached) Response. The only errors returned directly (as
// opposed to folded into a failed Response) are unexpected store/audit
// I/O faults — a programmer or infrastructure condition, not a normal
// operation outcome.
func (e *Executor) Run(ctx context.Context, plan *types.Plan) (*types.Response, error) {
	// Phase A — source resolution.
	dir, cleanup, err := e.resolveSource(ctx, plan)
	if err != nil {
		return failResponse(plan, "", err), nil
	}
	defer cleanup()

	// Phase B — path jailing.
	resolvedDir, err := jail(dir, e.ProjectRoot)
	if err != nil {
		return failResponse(plan, "", err), nil
	}

	existing, hasExisting, err := e.Store.Get(ctx, plan.OpID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", plan.OpID, err)
	}

	// Phase C — cache lookup (local sources only; git sources never cache).
	if hasExisting && existing.Status == types.StatusSucceeded && plan.Source.Kind != types.SourceGit {
		if outputsPresent(plan.Verb, resolvedDir) {
			return &types.Response{
				Status: types.StatusCached,
				OpID:   plan.OpID,
				Verb:   plan.Verb,
				Result: *existing.Result,
			}, nil
		}
		if err := e.Audit.Emit(ctx, auditlog.EventOperationCacheInvalidated, plan.OpID, plan.Verb, "", "", nil); err != nil {
			return nil, fmt.Errorf("audit cache invalidation: %w", err)
		}
	}

	// Phase D — throttling, computed before lock acquisition.
	if hasExisting {
		backoff := backoffSecs(existing.Attempts)
		elapsed := types.Now() - existing.LastAttemptAt
		if elapsed < backoff {
			retryAfter := backoff - elapsed
			if err := e.Audit.Emit(ctx, auditlog.EventThrottled, plan.OpID, plan.Verb, string(types.StatusFailed), "throttling_check", map[string]any{"retry_after_secs": retryAfter}); err != nil {
				return nil, fmt.Errorf("audit throttle: %w", err)
			}
			return &types.Response{
				Status: types.StatusFailed,
				OpID:   plan.OpID,
				Verb:   plan.Verb,
				Result: types.Result{
					Error:         "throttled: retry window not yet elapsed",
					Step:          "throttling_check",
					RetryAfterSec: retryAfter,
				},
			}, nil
		}
	}

	// Phase E — lock and run.
	ws := wslock.New(resolvedDir)
	if err := ws.TryAcquire(ctx); err != nil {
		return failResponse(plan, "acquire_workspace_lock", err), nil
	}
	defer ws.Release(ctx) //nolint:errcheck

	rec := e.beginRecord(existing, hasExisting, plan)
	rec.WorkspaceDir = resolvedDir
	if err := e.Store.Upsert(ctx, plan.OpID, rec); err != nil {
		return nil, fmt.Errorf("persist record %s: %w", plan.OpID, err)
	}
	if err := e.Audit.Emit(ctx, auditlog.EventOperationStarted, plan.OpID, plan.Verb, string(types.StatusRunning), "", nil); err != nil {
		return nil, fmt.Errorf("audit operation.started: %w", err)
	}

	resp, err := e.runSteps(ctx, plan, rec, resolvedDir)
	if err != nil {
		return nil, err
	}

	if plan.Source.Kind == types.SourceGit && rec.Status == types.StatusSucceeded {
		if err := e.Audit.Emit(ctx, auditlog.EventSourceArtifacts, plan.OpID, plan.Verb, "", "", map[string]any{"dir": resolvedDir}); err != nil {
			return nil, fmt.Errorf("audit source.artifacts: %w", err)
		}
	}

	return resp, nil
}

// resolveSource materializes plan's source into a directory, auditing the
// git fetch outcome. The returned cleanup is always safe to call, even
// for local sources (a no-op).
func (e *Executor) resolveSource(ctx context.Context, plan *types.Plan) (string, func(), error) {
	if plan.Source.Kind != types.SourceGit {
		res, err := e.Source.Resolve(ctx, plan)
		if err != nil {
			return "", func() {}, err
		}
		return res.Dir, res.Cleanup, nil
	}

	details := map[string]any{"url": source.SanitizeURL(plan.Source.URL), "ref": plan.Source.Ref}
	if err := e.Audit.Emit(ctx, auditlog.EventSourceFetchStarted, plan.OpID, plan.Verb, "", "", details); err != nil {
		return "", func() {}, fmt.Errorf("audit source.fetch.started: %w", err)
	}

	res, err := e.Source.Resolve(ctx, plan)
	if err != nil {
		failDetails := map[string]any{"url": source.SanitizeURL(plan.Source.URL), "ref": plan.Source.Ref, "error": err.Error()}
		_ = e.Audit.Emit(ctx, auditlog.EventSourceFetchFailed, plan.OpID, plan.Verb, "", "", failDetails)
		return "", func() {}, err
	}

	if err := e.Audit.Emit(ctx, auditlog.EventSourceFetchSucceeded, plan.OpID, plan.Verb, "", "", details); err != nil {
		res.Cleanup()
		return "", func() {}, fmt.Errorf("audit source.fetch.succeeded: %w", err)
	}
	return res.Dir, res.Cleanup, nil
}

// beginRecord returns the record to run this attempt against: a fresh
// record on first submission, or the existing one with attempts/retry
// accounting bumped and reset to running for a retry.
func (e *Executor) beginRecord(existing *types.Record, hasExisting bool, plan *types.Plan) *types.Record {
	rec := existing
	if !hasExisting {
		rec = &types.Record{
			OpID:      plan.OpID,
			Verb:      plan.Verb,
			Args:      plan.Args,
			Steps:     plan.Steps,
			Source:    plan.Source,
			StartedAt: types.Now(),
		}
	} else {
		rec.RetryCount++
	}
	rec.Status = types.StatusRunning
	rec.Attempts++
	rec.LastAttemptAt = types.Now()
	rec.EnsureStepState(plan.Steps)
	return rec
}

func failResponse(plan *types.Plan, step string, err error) *types.Response {
	return &types.Response{
		Status: types.StatusFailed,
		OpID:   plan.OpID,
		Verb:   plan.Verb,
		Result: types.Result{Error: err.Error(), Step: step},
	}
}
