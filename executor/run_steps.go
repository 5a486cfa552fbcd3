package executor

import (
	"context"
	"fmt"

	"github.com/projecteru2/cocoon/auditlog"
	"github.com/projecteru2/cocoon/types"
)

// runSteps drives rec through plan.Steps in order, persisting and
// auditing every transition. It returns the terminal Response; the only
// error it returns is an unexpected store/audit I/O fault.
func (e *Executor) runSteps(ctx context.Context, plan *types.Plan, rec *types.Record, dir string) (*types.Response, error) {
	for _, step := range plan.Steps {
		st := rec.StepState[step]
		if st.Status == types.StepSucceeded {
			continue
		}

		markStepRunning(rec, step)
		if err := e.Store.Upsert(ctx, plan.OpID, rec); err != nil {
			return nil, fmt.Errorf("persist step start %s: %w", step, err)
		}
		if err := e.Audit.Emit(ctx, auditlog.EventStepStarted, plan.OpID, plan.Verb, "", step, nil); err != nil {
			return nil, fmt.Errorf("audit step.started: %w", err)
		}

		if stepErr := e.runStepBody(ctx, plan, rec, dir, step); stepErr != nil {
			return e.failStep(ctx, plan, rec, dir, step, stepErr)
		}

		markStepSucceeded(rec, step)
		if err := e.Store.Upsert(ctx, plan.OpID, rec); err != nil {
			return nil, fmt.Errorf("persist step success %s: %w", step, err)
		}
		if err := e.Audit.Emit(ctx, auditlog.EventStepSucceeded, plan.OpID, plan.Verb, "", step, nil); err != nil {
			return nil, fmt.Errorf("audit step.succeeded: %w", err)
		}
	}

	rec.Status = types.StatusSucceeded
	rec.FinishedAt = types.Now()
	rec.Result = resultFromExecution(rec.Execution)
	if err := e.Store.Upsert(ctx, plan.OpID, rec); err != nil {
		return nil, fmt.Errorf("persist success %s: %w", plan.OpID, err)
	}
	if err := e.Audit.Emit(ctx, auditlog.EventOperationSucceeded, plan.OpID, plan.Verb, string(types.StatusSucceeded), "", nil); err != nil {
		return nil, fmt.Errorf("audit operation.succeeded: %w", err)
	}
	return &types.Response{Status: types.StatusSucceeded, OpID: plan.OpID, Verb: plan.Verb, Result: *rec.Result}, nil
}

// failStep transitions rec and step to failed, persists and audits the
// transition, rolls back any verb outputs if the failing step was the
// verb execution, and returns the terminal failed Response.
func (e *Executor) failStep(ctx context.Context, plan *types.Plan, rec *types.Record, dir, step string, cause error) (*types.Response, error) {
	markStepFailed(rec, step, cause)
	rec.Status = types.StatusFailed
	rec.FinishedAt = types.Now()
	rec.Result = &types.Result{Error: cause.Error(), Step: step}
	if rec.Execution != nil && step == types.ExecStepName(plan.Verb) {
		rec.Result.ExitCode = rec.Execution.ExitCode
		rec.Result.Stdout = rec.Execution.Stdout
		rec.Result.Command = rec.Execution.Command
	}

	if err := e.Store.Upsert(ctx, plan.OpID, rec); err != nil {
		return nil, fmt.Errorf("persist step failure %s: %w", step, err)
	}
	if err := e.Audit.Emit(ctx, auditlog.EventStepFailed, plan.OpID, plan.Verb, "", step, map[string]any{"error": cause.Error()}); err != nil {
		return nil, fmt.Errorf("audit step.failed: %w", err)
	}
	if err := e.Audit.Emit(ctx, auditlog.EventOperationFailed, plan.OpID, plan.Verb, string(types.StatusFailed), step, nil); err != nil {
		return nil, fmt.Errorf("audit operation.failed: %w", err)
	}

	if step == types.ExecStepName(plan.Verb) {
		e.rollbackOutputs(ctx, plan.OpID, plan.Verb, dir)
	}

	return &types.Response{Status: types.StatusFailed, OpID: plan.OpID, Verb: plan.Verb, Result: *rec.Result}, nil
}

// runStepBody executes the body of a single step and returns a non-nil
// error on failure — the caller is responsible for all state/audit
// bookkeeping around this call.
func (e *Executor) runStepBody(ctx context.Context, plan *types.Plan, rec *types.Record, dir, step string) error {
	switch step {
	case types.StepValidateInputs:
		return validateInputs(plan)
	case types.StepRecordResult:
		return nil
	default:
		return e.executeVerb(ctx, plan, rec, dir)
	}
}

func validateInputs(plan *types.Plan) error {
	if plan.Verb == types.VerbSmoke && len(plan.Args) == 0 {
		return types.NewOpError(types.ErrValidationFailure, fmt.Errorf("smoke requires at least one argument"))
	}
	return nil
}

func (e *Executor) executeVerb(ctx context.Context, plan *types.Plan, rec *types.Record, dir string) error {
	argv, err := e.Synth.Command(plan.Verb, plan.Args, dir)
	if err != nil {
		return err
	}

	exec, err := runCommand(ctx, dir, argv, e.VerbTimeout)
	if err != nil {
		return types.NewOpError(types.ErrVerbExecution, err)
	}
	rec.Execution = exec

	if exec.ExitCode != 0 {
		return types.NewOpError(types.ErrVerbExecution, fmt.Errorf("command %v exited %d", argv, exec.ExitCode))
	}
	return nil
}

func resultFromExecution(exec *types.Execution) *types.Result {
	if exec == nil {
		return &types.Result{}
	}
	return &types.Result{ExitCode: exec.ExitCode, Stdout: exec.Stdout, Command: exec.Command}
}
