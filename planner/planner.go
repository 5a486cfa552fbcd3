// Package planner implements the Planner: translates a raw verb, argument
// list, and optional source descriptor into an immutable Plan, rejecting
// unsupported verbs before any other component sees the request.
package planner

import (
	"fmt"

	"github.com/projecteru2/cocoon/types"
)

// Planner builds Plans.
type Planner struct{}

// New returns a Planner.
func New() *Planner {
	return &Planner{}
}

// Plan validates verb membership and shape only — per-verb argument
// requirements (e.g. smoke needing a non-empty args) are the
// validate_inputs step's job, not the Planner's, so that a rejected
// request still produces a Plan, a Record, and an auditable failure
// instead of a bare, unrecorded error. Builds the deterministic step
// list: validate_inputs, execute_<verb>, record_result, always in that
// order.
func (p *Planner) Plan(opID string, verb types.Verb, args []string, src types.Source) (*types.Plan, error) {
	if !verb.IsValid() {
		return nil, types.NewOpError(types.ErrUnsupportedVerb, fmt.Errorf("unsupported verb %q", verb))
	}

	return &types.Plan{
		OpID: opID,
		Verb: verb,
		Args: args,
		Steps: []string{
			types.StepValidateInputs,
			types.ExecStepName(verb),
			types.StepRecordResult,
		},
		Source: src,
	}, nil
}
