package schema

// ExecutionStatus is the overall outcome of a run.
type ExecutionStatus string

const (
	RunCompleted ExecutionStatus = "Completed"
	RunFailed    ExecutionStatus = "Failed"
	RunWhatIf    ExecutionStatus = "WhatIf"
)

// StepRunStatus is the outcome of a single executed step.
type StepRunStatus string

const (
	StepCompleted StepRunStatus = "Completed"
	StepFailed    StepRunStatus = "Failed"
	StepSkipped   StepRunStatus = "NotApplicable"
)

// StepResult summarizes the outcome of one step.
type StepResult struct {
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Status StepRunStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// OnFailureStatus is the aggregate outcome of the compensation section.
type OnFailureStatus string

const (
	OnFailureNotRun          OnFailureStatus = "NotRun"
	OnFailureCompleted       OnFailureStatus = "Completed"
	OnFailurePartiallyFailed OnFailureStatus = "PartiallyFailed"
	OnFailureFailed          OnFailureStatus = "Failed"
)

// OnFailureExecutionResult reports the best-effort compensation run. It is
// always present on a result, NotRun when the primary sequence succeeded.
type OnFailureExecutionResult struct {
	Status OnFailureStatus `json:"status"`
	Steps  []StepResult    `json:"steps"`
}

// ExecutionResult is the engine-owned outcome of executing a plan. Every
// event it carries has passed through redaction.
type ExecutionResult struct {
	Status    ExecutionStatus          `json:"status"`
	Steps     []StepResult             `json:"steps"`
	Events    []Event                  `json:"events"`
	OnFailure OnFailureExecutionResult `json:"on_failure"`
}
