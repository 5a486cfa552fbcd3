// Package daemon wires the core components — Store, Audit Log, Source
// Provisioner, Planner, Synthesizer, Executor, and Housekeeper — into one
// runnable unit, and exposes the request/control surface an external
// collaborator (a network listener, a CLI, a test harness) drives.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/projecteru2/cocoon/auditlog"
	"github.com/projecteru2/cocoon/config"
	"github.com/projecteru2/cocoon/executor"
	"github.com/projecteru2/cocoon/housekeeper"
	"github.com/projecteru2/cocoon/planner"
	"github.com/projecteru2/cocoon/source"
	"github.com/projecteru2/cocoon/store"
	"github.com/projecteru2/cocoon/synth"
	"github.com/projecteru2/cocoon/types"
	"github.com/projecteru2/cocoon/utils"
)

// Daemon is the fully-wired core. It owns the long-lived Store handle and
// must be Closed on shutdown.
type Daemon struct {
	cfg     *config.Config
	store   store.Store
	audit   *auditlog.AuditLog
	planner *planner.Planner
	exec    *executor.Executor
	hk      *housekeeper.Housekeeper
}

// New opens the store and audit log under cfg, and builds the rest of the
// component graph. It does not start serving requests; callers typically
// invoke RunHousekeeping before accepting traffic, to recover operations
// left running by a prior crash.
func New(cfg *config.Config) (*Daemon, error) {
	if err := utils.EnsureDirs(cfg.StoreDir(), cfg.SandboxDir()); err != nil {
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	instanceID, err := st.InstanceID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read instance id: %w", err)
	}

	auditPath := cfg.ResolvedAuditLogPath()
	al := auditlog.New(auditPath, auditPath+".lock", instanceID)

	prov := source.New(cfg.SandboxDir(), time.Duration(cfg.GitCloneTimeoutSec)*time.Second, cfg.GitAllowedDomains)
	synthesizer := synth.New(cfg.MockExecution, cfg.RootDir+"/tools", cfg.ImageTag)

	exec := &executor.Executor{
		Store:       st,
		Audit:       al,
		Source:      prov,
		Synth:       synthesizer,
		ProjectRoot: cfg.RootDir,
		VerbTimeout: time.Duration(cfg.VerbTimeoutSec) * time.Second,
	}

	hk := &housekeeper.Housekeeper{
		Store:      st,
		Audit:      al,
		SandboxDir: cfg.SandboxDir(),
		MaxAge:     utils.StaleTempAge,
	}

	return &Daemon{
		cfg:     cfg,
		store:   st,
		audit:   al,
		planner: planner.New(),
		exec:    exec,
		hk:      hk,
	}, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	path := cfg.ResolvedStorePath()
	if cfg.StoreBackend == "json" {
		return store.OpenJSON(path+".lock", path)
	}
	return store.Open(path)
}

// Close releases the underlying store handle, if the backend holds one.
func (d *Daemon) Close() error {
	if closer, ok := d.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Submit plans and runs one request to a terminal (or cached) response.
func (d *Daemon) Submit(ctx context.Context, opID string, verb types.Verb, args []string, src types.Source) (*types.Response, error) {
	plan, err := d.planner.Plan(opID, verb, args, src)
	if err != nil {
		var opErr *types.OpError
		if errors.As(err, &opErr) {
			return &types.Response{Status: types.StatusFailed, OpID: opID, Verb: verb, Result: types.Result{Error: opErr.Error()}}, nil
		}
		return nil, err
	}
	return d.exec.Run(ctx, plan)
}

// Cancel terminates a running operation.
func (d *Daemon) Cancel(ctx context.Context, opID string) (*types.Response, error) {
	return d.exec.Cancel(ctx, opID)
}

// RunHousekeeping executes one zombie-recovery + sandbox-pruning cycle.
// Intended to run once at startup before serving traffic, and optionally
// on a periodic timer thereafter.
func (d *Daemon) RunHousekeeping(ctx context.Context) error {
	return d.hk.Run(ctx)
}
