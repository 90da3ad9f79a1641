package domain

import "time"

// RunStatus is the terminal outcome of a workflow run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// StepOutcome records how a single step ended.
type StepOutcome string

const (
	StepOutcomeCompleted StepOutcome = "completed"
	StepOutcomeFailed    StepOutcome = "failed"
	StepOutcomeAborted   StepOutcome = "aborted"
)

// StepRecord is the audit entry for one step of a run.
type StepRecord struct {
	Name     string      `json:"name"`
	Attempts int         `json:"attempts"`
	Outcome  StepOutcome `json:"outcome"`
	Error    string      `json:"error,omitempty"`
}

// WorkflowRun is the durable record of one workflow execution.
type WorkflowRun struct {
	ID         string
	Workflow   string
	SubjectID  string
	EventID    string
	Status     RunStatus
	FailedStep string
	Error      string
	Steps      []StepRecord
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the run completed every step.
func (r *WorkflowRun) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}
