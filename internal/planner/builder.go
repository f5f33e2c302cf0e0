package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/idle-engine/idle/internal/capabilities"
	"github.com/idle-engine/idle/internal/conditions"
	"github.com/idle-engine/idle/internal/templates"
	"github.com/idle-engine/idle/internal/value"
	"github.com/idle-engine/idle/pkg/registry"
	"github.com/idle-engine/idle/pkg/schema"
)

// Builder produces immutable plans. Planning is a pure function of its
// inputs: the same workflow, request, and providers always yield the same
// plan.
type Builder struct {
	metadata  *registry.MetadataRegistry
	validator *workflowValidator
	sink      schema.EventSink
}

// NewBuilder creates a Builder over a metadata registry. sink is optional;
// when present it additionally receives capability-normalization
// diagnostics, which are always recorded as plan warnings either way.
func NewBuilder(metadata *registry.MetadataRegistry, sink schema.EventSink) (*Builder, error) {
	if metadata == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "metadata registry is required")
	}
	if err := registry.EnsureNamedReference("event sink", sink); err != nil {
		return nil, err
	}
	validator, err := newWorkflowValidator()
	if err != nil {
		return nil, err
	}
	return &Builder{metadata: metadata, validator: validator, sink: sink}, nil
}

// Build validates the workflow document, resolves every step, runs the
// capability gate, and assembles the plan. Any validation failure reports
// every violation found; a gate failure returns no partial plan.
func (b *Builder) Build(
	ctx context.Context,
	doc map[string]any,
	req *schema.LifecycleRequest,
	providers map[string]schema.Provider,
	opts schema.ExecutionOptions,
) (*schema.Plan, error) {
	if req == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "lifecycle request is required")
	}

	// Stage 1: structural shape.
	result := b.validator.validate(doc)
	if !result.Valid() {
		return nil, result.ToError()
	}

	wf := decodeWorkflow(doc)

	// Stage 2: semantics — collected, not first-only.
	result.Merge(validateSemantics(wf))
	result.Merge(validateRetryProfiles(wf, opts))
	if !result.Valid() {
		return nil, result.ToError()
	}

	if wf.LifecycleEvent != req.LifecycleEvent {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"workflow %q handles lifecycle event %q, request carries %q",
			wf.Name, wf.LifecycleEvent, req.LifecycleEvent)
	}

	available, providerDiagnostics, err := capabilities.Aggregate(providers)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, d := range providerDiagnostics {
		warnings = append(warnings, "legacy capability normalized: "+d)
	}

	planningCtx := buildPlanningContext(wf, req)
	resolver := templates.NewResolver(templates.NewScope(req), opts.WorkingDir)

	// Per-step failures are collected, not first-only: a workflow with two
	// unknown step types reports both.
	stepIssues := &schema.ValidationResult{}
	steps, stepWarnings := b.buildSteps(wf.Steps, "/Steps", planningCtx, resolver, stepIssues)
	onFailure, onFailureWarnings := b.buildSteps(wf.OnFailureSteps, "/OnFailureSteps", planningCtx, resolver, stepIssues)
	if !stepIssues.Valid() {
		return nil, stepIssues.ToError()
	}
	warnings = append(warnings, stepWarnings...)
	warnings = append(warnings, onFailureWarnings...)

	// Stage 3: fail-fast capability gate over both lists.
	all := make([]schema.PlanStep, 0, len(steps)+len(onFailure))
	all = append(all, steps...)
	all = append(all, onFailure...)
	if err := capabilities.Check(all, available); err != nil {
		return nil, err
	}

	b.emitNormalizationEvents(ctx, req, warnings)

	providerRefs := make(map[string]any, len(providers))
	for name, p := range providers {
		providerRefs[name] = p
	}

	return &schema.Plan{
		WorkflowName:   wf.Name,
		LifecycleEvent: wf.LifecycleEvent,
		CorrelationID:  req.CorrelationID,
		Request:        req,
		Steps:          steps,
		OnFailureSteps: onFailure,
		Providers:      providerRefs,
		Warnings:       warnings,
	}, nil
}

// buildSteps resolves one step list: capabilities from the metadata catalog
// only, condition pre-evaluated to a planning status, templates applied to a
// deep copy of With. Failures accumulate into issues; a step that failed
// resolution contributes no plan step.
func (b *Builder) buildSteps(
	defs []schema.StepDefinition,
	listPath string,
	planningCtx value.Value,
	resolver *templates.Resolver,
	issues *schema.ValidationResult,
) ([]schema.PlanStep, []string) {
	steps := make([]schema.PlanStep, 0, len(defs))
	var warnings []string

	addIssue := func(i int, def schema.StepDefinition, err error) {
		issues.AddError(fmt.Sprintf("%s/%d", listPath, i), issueCode(err), stepMessage(def.Name, err))
	}

	for i, def := range defs {
		md, err := b.metadata.Resolve(def.Type)
		if err != nil {
			addIssue(i, def, err)
			continue
		}
		caps, normalized, err := capabilities.SortedSet(md.RequiredCapabilities)
		if err != nil {
			addIssue(i, def, err)
			continue
		}
		for _, n := range normalized {
			warnings = append(warnings, fmt.Sprintf("step %q: legacy capability normalized: %s", def.Name, n))
		}

		status := schema.StepPlanned
		if def.Condition != nil {
			applicable, err := conditions.Evaluate(def.Condition, planningCtx)
			if err != nil {
				addIssue(i, def, err)
				continue
			}
			if !applicable {
				status = schema.StepNotApplicable
			}
		}

		var with map[string]any
		if def.With != nil {
			resolved, err := resolver.Resolve(def.With)
			if err != nil {
				addIssue(i, def, err)
				continue
			}
			m, ok := resolved.(map[string]any)
			if !ok {
				addIssue(i, def, schema.NewError(schema.ErrCodeValidation,
					"step parameters must resolve to a map"))
				continue
			}
			with = m
		}

		description := def.Description
		if description == "" {
			description = md.Description
		}

		steps = append(steps, schema.PlanStep{
			Name:                 def.Name,
			Type:                 def.Type,
			Description:          description,
			Condition:            cloneTree(def.Condition),
			With:                 with,
			RequiresCapabilities: caps,
			Status:               status,
			RetryProfile:         def.RetryProfile,
		})
	}
	return steps, warnings
}

// issueCode preserves the structured code of a per-step failure inside the
// aggregated report.
func issueCode(err error) string {
	var ee *schema.EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return schema.ErrCodeValidation
}

// stepMessage prefixes an issue with the step it arose from.
func stepMessage(stepName string, err error) string {
	var ee *schema.EngineError
	if errors.As(err, &ee) {
		return fmt.Sprintf("step %q: %s", stepName, ee.Message)
	}
	return fmt.Sprintf("step %q: %s", stepName, err.Error())
}

// cloneTree rebuilds a nested map/list/scalar tree so plan steps hold no
// references into the caller-owned workflow document.
func cloneTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneTree(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneTree(child)
		}
		return out
	default:
		return v
	}
}

// validateRetryProfiles checks that every named profile reference exists.
func validateRetryProfiles(wf *schema.Workflow, opts schema.ExecutionOptions) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	check := func(steps []schema.StepDefinition, listPath string) {
		for i, step := range steps {
			if step.RetryProfile == "" {
				continue
			}
			if _, ok := opts.RetryProfiles[step.RetryProfile]; !ok {
				result.AddError(fmt.Sprintf("%s/%d", listPath, i), schema.ErrCodeValidation,
					fmt.Sprintf("step %q references unknown retry profile %q", step.Name, step.RetryProfile))
			}
		}
	}
	check(wf.Steps, "/Steps")
	check(wf.OnFailureSteps, "/OnFailureSteps")
	return result
}

// buildPlanningContext exposes the request and the in-progress plan metadata
// to step conditions.
func buildPlanningContext(wf *schema.Workflow, req *schema.LifecycleRequest) value.Value {
	request := map[string]any{
		"LifecycleEvent": req.LifecycleEvent,
		"IdentityKeys":   req.IdentityKeys,
		"DesiredState":   req.DesiredState,
		"Input":          req.DesiredState,
		"CorrelationId":  req.CorrelationID,
	}
	if req.Changes != nil {
		request["Changes"] = req.Changes
	}
	if req.Actor != "" {
		request["Actor"] = req.Actor
	}
	return value.FromAny(map[string]any{
		"Request": request,
		"Workflow": map[string]any{
			"Name":           wf.Name,
			"LifecycleEvent": wf.LifecycleEvent,
		},
	})
}

// emitNormalizationEvents forwards legacy-capability diagnostics to the
// optional sink. The warnings are already on the plan; the sink is extra
// observability, and sink failures do not fail planning.
func (b *Builder) emitNormalizationEvents(ctx context.Context, req *schema.LifecycleRequest, warnings []string) {
	if b.sink == nil {
		return
	}
	for _, w := range warnings {
		_ = b.sink.WriteEvent(ctx, &schema.Event{
			TimestampUTC:  time.Now().UTC(),
			Type:          schema.EventCapabilityNormalized,
			Message:       w,
			CorrelationID: req.CorrelationID,
			Actor:         req.Actor,
		})
	}
}
