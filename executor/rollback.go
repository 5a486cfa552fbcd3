package executor

import (
	"context"
	"os"

	"github.com/projecteru2/cocoon/auditlog"
	"github.com/projecteru2/cocoon/types"
)

// rollbackOutputs removes a verb's expected output directories if present,
// after a failed execute_<verb> step, and emits one system.rollback event
// per path actually removed.
func (e *Executor) rollbackOutputs(ctx context.Context, opID string, verb types.Verb, dir string) {
	for _, name := range []string{"out", "dist"} {
		path := dir + "/" + name
		if !isDir(path) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			continue
		}
		_ = e.Audit.Emit(ctx, auditlog.EventSystemRollback, opID, verb, "", "", map[string]any{"path": path})
	}
}
