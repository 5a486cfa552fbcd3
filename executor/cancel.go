package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/projecteru2/cocoon/auditlog"
	"github.com/projecteru2/cocoon/types"
	"github.com/projecteru2/cocoon/utils"
	"github.com/projecteru2/cocoon/wslock"
)

const cancelGracePeriod = 10 * time.Second

// Cancel terminates a running operation: it delivers a polite termination
// signal to the PID recorded in the operation's workspace lock (best
// effort — that PID is advisory and need not be the build's root child),
// then authoritatively flips the record to failed regardless of whether
// the child actually died.
func (e *Executor) Cancel(ctx context.Context, opID string) (*types.Response, error) {
	rec, ok, err := e.Store.Get(ctx, opID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", opID, err)
	}
	if !ok || rec.Status != types.StatusRunning {
		return nil, fmt.Errorf("operation %s is not running", opID)
	}

	errMsg := "Cancelled by user"
	pid, havePID, err := wslock.New(rec.WorkspaceDir).HolderPID()
	if err != nil {
		return nil, fmt.Errorf("read workspace lock for %s: %w", opID, err)
	}
	if havePID {
		_ = utils.TerminateProcess(ctx, pid, cancelGracePeriod)
	} else {
		errMsg = "Cancelled by user (no workspace lock found)"
	}

	rec.Status = types.StatusFailed
	rec.FinishedAt = types.Now()
	rec.Result = &types.Result{Error: errMsg, Step: "cancel"}
	if err := e.Store.Upsert(ctx, opID, rec); err != nil {
		return nil, fmt.Errorf("persist cancellation %s: %w", opID, err)
	}
	if err := e.Audit.Emit(ctx, auditlog.EventOperationCancelled, opID, rec.Verb, string(types.StatusFailed), "cancel", nil); err != nil {
		return nil, fmt.Errorf("audit operation.cancelled: %w", err)
	}

	return &types.Response{Status: types.StatusFailed, OpID: opID, Verb: rec.Verb, Result: *rec.Result}, nil
}
