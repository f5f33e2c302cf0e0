package schema

// PlanStepStatus is assigned once, at planning time, by evaluating the
// step's condition against the planning context.
type PlanStepStatus string

const (
	StepPlanned       PlanStepStatus = "Planned"
	StepNotApplicable PlanStepStatus = "NotApplicable"
)

// PlanStep is a fully resolved step: condition pre-evaluated, templates
// applied, required capabilities derived from the step metadata catalog
// (never from the workflow author).
type PlanStep struct {
	Name                 string         `json:"name"`
	Type                 string         `json:"type"`
	Description          string         `json:"description,omitempty"`
	Condition            any            `json:"condition,omitempty"`
	With                 map[string]any `json:"with,omitempty"`
	RequiresCapabilities []string       `json:"requires_capabilities"`
	Status               PlanStepStatus `json:"status"`
	RetryProfile         string         `json:"retry_profile,omitempty"`
}

// Plan is the immutable, capability-validated output of the plan builder.
// Re-planning produces a new Plan; nothing mutates one after assembly.
type Plan struct {
	WorkflowName   string            `json:"workflow_name"`
	LifecycleEvent string            `json:"lifecycle_event"`
	CorrelationID  string            `json:"correlation_id"`
	Request        *LifecycleRequest `json:"request"`
	Steps          []PlanStep        `json:"steps"`
	OnFailureSteps []PlanStep        `json:"on_failure_steps"`
	Providers      map[string]any    `json:"-"`
	Actions        []string          `json:"actions,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
}
