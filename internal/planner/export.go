package planner

import (
	"encoding/json"
	"fmt"

	"github.com/idle-engine/idle/internal/redact"
	"github.com/idle-engine/idle/pkg/schema"
)

// ExportSchemaVersion identifies the export document layout.
const ExportSchemaVersion = "1.0"

// Engine version and generation timestamps are deliberately omitted from
// exports so snapshot tests stay stable across releases and runs.

type planExport struct {
	SchemaVersion string         `json:"schemaVersion"`
	Engine        engineExport   `json:"engine"`
	Request       requestExport  `json:"request"`
	Plan          planBodyExport `json:"plan"`
	Metadata      metadataExport `json:"metadata"`
}

type engineExport struct {
	Name string `json:"name"`
}

type requestExport struct {
	Type          string         `json:"type"`
	CorrelationID string         `json:"correlationId"`
	Actor         string         `json:"actor,omitempty"`
	Input         map[string]any `json:"input"`
}

type planBodyExport struct {
	ID    string       `json:"id"`
	Mode  string       `json:"mode"`
	Steps []stepExport `json:"steps"`
}

type stepExport struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	StepType      string           `json:"stepType"`
	Provider      string           `json:"provider,omitempty"`
	Condition     *conditionExport `json:"condition,omitempty"`
	Inputs        map[string]any   `json:"inputs,omitempty"`
	ExpectedState map[string]any   `json:"expectedState"`
}

type conditionExport struct {
	Type       string `json:"type"`
	Expression string `json:"expression"`
}

type metadataExport struct {
	GeneratedBy string            `json:"generatedBy"`
	Environment string            `json:"environment,omitempty"`
	Labels      map[string]string `json:"labels"`
}

// Export serializes a plan into the schema-versioned JSON document. Every
// field passes through redaction before serialization.
func Export(plan *schema.Plan, opts schema.ExecutionOptions) ([]byte, error) {
	if plan == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "plan is nil")
	}

	mode := "execute"
	if opts.WhatIf {
		mode = "whatIf"
	}

	steps := make([]stepExport, 0, len(plan.Steps)+len(plan.OnFailureSteps))
	appendSteps := func(list []schema.PlanStep, prefix string) error {
		for i, step := range list {
			exported := stepExport{
				ID:       fmt.Sprintf("%s-%03d", prefix, i+1),
				Name:     step.Name,
				StepType: step.Type,
				Inputs:   redact.Map(step.With),
				ExpectedState: map[string]any{
					"status": string(step.Status),
				},
			}
			if step.Condition != nil {
				expr, err := json.Marshal(redact.Value(step.Condition))
				if err != nil {
					return schema.NewError(schema.ErrCodeValidation, "condition is not serializable").WithStep(step.Name)
				}
				exported.Condition = &conditionExport{Type: "declarative", Expression: string(expr)}
			}
			steps = append(steps, exported)
		}
		return nil
	}
	if err := appendSteps(plan.Steps, "step"); err != nil {
		return nil, err
	}
	if err := appendSteps(plan.OnFailureSteps, "onfailure"); err != nil {
		return nil, err
	}

	doc := planExport{
		SchemaVersion: ExportSchemaVersion,
		Engine:        engineExport{Name: "idle"},
		Request: requestExport{
			Type:          plan.LifecycleEvent,
			CorrelationID: plan.CorrelationID,
			Actor:         plan.Request.Actor,
			Input:         redact.Map(plan.Request.DesiredState),
		},
		Plan: planBodyExport{
			ID:    plan.WorkflowName + ":" + plan.CorrelationID,
			Mode:  mode,
			Steps: steps,
		},
		Metadata: metadataExport{
			GeneratedBy: "idle",
			Environment: opts.Environment,
			Labels: map[string]string{
				"workflow":       plan.WorkflowName,
				"lifecycleEvent": plan.LifecycleEvent,
			},
		},
	}

	return json.MarshalIndent(doc, "", "  ")
}
