package schema

// Workflow is the parsed declarative workflow definition. Workflows arrive as
// data (the loader and its on-disk format live outside the engine); nothing
// in a workflow may be executable.
type Workflow struct {
	Name           string           `json:"name"`
	LifecycleEvent string           `json:"lifecycle_event"`
	Steps          []StepDefinition `json:"steps"`
	OnFailureSteps []StepDefinition `json:"on_failure_steps,omitempty"`
}

// StepDefinition describes a single step in a workflow.
type StepDefinition struct {
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Description  string         `json:"description,omitempty"`
	Condition    any            `json:"condition,omitempty"`     // declarative condition tree (map or bare path)
	With         map[string]any `json:"with,omitempty"`          // parameters, may hold {{...}} placeholders
	RetryProfile string         `json:"retry_profile,omitempty"` // name in ExecutionOptions.RetryProfiles
}

// RetrySettings parameterizes the retry policy for a step. All fields are
// validated against the engine's hard limits before use.
type RetrySettings struct {
	MaxAttempts              int     `json:"max_attempts"`
	InitialDelayMilliseconds int     `json:"initial_delay_ms"`
	BackoffFactor            float64 `json:"backoff_factor"`
	MaxDelayMilliseconds     int     `json:"max_delay_ms"`
	JitterRatio              float64 `json:"jitter_ratio"`
}

// ExecutionOptions configures planning and execution for one run.
type ExecutionOptions struct {
	// WhatIf short-circuits execution after validation: no handler runs, no
	// events are emitted, the result status is WhatIf.
	WhatIf bool

	// RetryProfiles maps profile names referenced by steps to settings.
	RetryProfiles map[string]RetrySettings

	// DefaultRetry applies to steps without a named profile. Nil means run
	// each step exactly once.
	DefaultRetry *RetrySettings

	// WorkingDir anchors relative FromFile paths during template resolution.
	// Empty means the process working directory.
	WorkingDir string

	// RetrySeed is an optional deterministic seed prefix for jitter
	// computation. Empty means the workflow name is used.
	RetrySeed string

	// Environment is an informational label carried into plan exports.
	Environment string
}
