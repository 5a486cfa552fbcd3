package executor

import "github.com/projecteru2/cocoon/types"

func markStepRunning(rec *types.Record, step string) {
	st := rec.StepState[step]
	st.Status = types.StepRunning
	st.Attempts++
	st.StartedAt = types.Now()
}

func markStepSucceeded(rec *types.Record, step string) {
	st := rec.StepState[step]
	st.Status = types.StepSucceeded
	st.FinishedAt = types.Now()
	st.LastError = ""
}

func markStepFailed(rec *types.Record, step string, cause error) {
	st := rec.StepState[step]
	st.Status = types.StepFailed
	st.FinishedAt = types.Now()
	st.LastError = cause.Error()
}
