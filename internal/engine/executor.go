package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/idle-engine/idle/internal/logging"
	"github.com/idle-engine/idle/internal/redact"
	"github.com/idle-engine/idle/pkg/registry"
	"github.com/idle-engine/idle/pkg/schema"
)

// Executor walks a plan's steps in order, dispatching each to its registered
// handler. One Executor may serve many runs; runs share no mutable state.
type Executor struct {
	handlers *registry.HandlerRegistry
	broker   schema.AuthSessionBroker
	sink     schema.EventSink
	logger   *slog.Logger
	options  schema.ExecutionOptions
}

// NewExecutor validates the host-supplied collaborators and snapshots the
// handler registry. Sinks must be named types — inline closures are rejected
// at this boundary. All retry profiles are validated here, before any step
// could run.
func NewExecutor(
	handlers *registry.HandlerRegistry,
	opts schema.ExecutionOptions,
	broker schema.AuthSessionBroker,
	sink schema.EventSink,
	logger *slog.Logger,
) (*Executor, error) {
	if handlers == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "handler registry is required")
	}
	if err := registry.EnsureNamedReference("event sink", sink); err != nil {
		return nil, err
	}
	if err := registry.EnsureNamedReference("auth session broker", broker); err != nil {
		return nil, err
	}
	for name, settings := range opts.RetryProfiles {
		if err := ValidateRetrySettings(name, settings); err != nil {
			return nil, err
		}
	}
	if opts.DefaultRetry != nil {
		if err := ValidateRetrySettings("default", *opts.DefaultRetry); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Executor{
		handlers: handlers.Snapshot(),
		broker:   broker,
		sink:     sink,
		logger:   logger,
		options:  opts,
	}, nil
}

// Execute runs a plan to completion. Step failures are reported in the
// result, not as a Go error; the error return is reserved for invariant
// violations such as a nil plan.
func (e *Executor) Execute(ctx context.Context, plan *schema.Plan) (*schema.ExecutionResult, error) {
	if plan == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "plan is nil")
	}

	// Dry run: validated, then nothing happens. Zero events, no side effects.
	if e.options.WhatIf {
		return &schema.ExecutionResult{
			Status:    schema.RunWhatIf,
			Steps:     []schema.StepResult{},
			Events:    []schema.Event{},
			OnFailure: schema.OnFailureExecutionResult{Status: schema.OnFailureNotRun, Steps: []schema.StepResult{}},
		}, nil
	}

	ctx = logging.WithCorrelationID(ctx, plan.CorrelationID)
	run := &run{
		executor: e,
		plan:     plan,
		ctx:      ctx,
		result: &schema.ExecutionResult{
			Steps:     []schema.StepResult{},
			Events:    []schema.Event{},
			OnFailure: schema.OnFailureExecutionResult{Status: schema.OnFailureNotRun, Steps: []schema.StepResult{}},
		},
	}
	run.runContext = &registry.RunContext{
		Providers: providerMap(plan.Providers),
		Broker:    e.broker,
		Events:    run,
	}

	run.emit(schema.EventRunStarted, "run started for workflow "+plan.WorkflowName, "", nil)

	failed := false
	for _, step := range plan.Steps {
		ok := run.executeStep(step, false)
		if !ok {
			failed = true
			break
		}
	}

	if !failed {
		run.result.Status = schema.RunCompleted
		run.emit(schema.EventRunCompleted, "run completed", "", nil)
		return run.result, nil
	}

	run.executeOnFailure()
	run.result.Status = schema.RunFailed
	run.emit(schema.EventRunFailed, "run failed", "", nil)
	return run.result, nil
}

// run tracks a single in-flight execution.
type run struct {
	executor   *Executor
	plan       *schema.Plan
	ctx        context.Context
	result     *schema.ExecutionResult
	runContext *registry.RunContext
}

// executeStep runs one step, applying the retry policy. Returns false when
// the step failed (skips count as success). onFailure switches the emitted
// event vocabulary to the compensation set.
func (r *run) executeStep(step schema.PlanStep, onFailure bool) bool {
	if step.Status == schema.StepNotApplicable {
		r.emit(schema.EventStepNotApplicable, "step skipped: condition not met at planning time", step.Name, nil)
		r.record(onFailure, schema.StepResult{
			Name: step.Name, Type: step.Type, Status: schema.StepSkipped,
		})
		return true
	}

	startedType := schema.EventStepStarted
	completedType := schema.EventStepCompleted
	failedType := schema.EventStepFailed
	if onFailure {
		startedType = schema.EventOnFailureStepStarted
		completedType = schema.EventOnFailureStepCompleted
		failedType = schema.EventOnFailureStepFailed
	}

	r.emit(startedType, "step started", step.Name, nil)

	handler, err := r.executor.handlers.Resolve(step.Type)
	if err != nil {
		// Unresolvable handlers fail immediately, never retried.
		r.emit(failedType, err.Error(), step.Name, nil)
		r.record(onFailure, schema.StepResult{
			Name: step.Name, Type: step.Type, Status: schema.StepFailed, Error: err.Error(),
		})
		return false
	}

	err = r.invokeWithRetry(handler, step)
	if err != nil {
		r.emit(failedType, err.Error(), step.Name, map[string]any{
			"error": err.Error(),
		})
		r.record(onFailure, schema.StepResult{
			Name: step.Name, Type: step.Type, Status: schema.StepFailed, Error: err.Error(),
		})
		return false
	}

	r.emit(completedType, "step completed", step.Name, nil)
	r.record(onFailure, schema.StepResult{
		Name: step.Name, Type: step.Type, Status: schema.StepCompleted,
	})
	return true
}

// invokeWithRetry applies the step's retry profile around handler
// invocations. Only errors carrying the explicit transient marker are
// retried; everything else fails fast with no delay.
func (r *run) invokeWithRetry(handler registry.Handler, step schema.PlanStep) error {
	settings, retryable := r.retrySettings(step)
	maxAttempts := 1
	if retryable && settings.MaxAttempts > 0 {
		maxAttempts = settings.MaxAttempts
	}

	operation := r.executor.options.RetrySeed
	if operation == "" {
		operation = r.plan.WorkflowName
	}

	logger := logging.LogWith(r.ctx, r.executor.logger)
	for attempt := 1; ; attempt++ {
		err := r.invoke(handler, step)
		if err == nil {
			return nil
		}
		if !schema.IsTransient(err) || attempt >= maxAttempts {
			return err
		}

		delay := ComputeDelay(settings, RetrySeed(operation, step.Name, attempt), attempt)
		data := map[string]any{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		}
		var ee *schema.EngineError
		if errors.As(err, &ee) {
			data["error_code"] = ee.Code
		}
		r.emit(schema.EventStepRetrying, "step retrying", step.Name, data)
		logger.WarnContext(r.ctx, "step retrying",
			slog.String("step", step.Name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay))

		if waitErr := waitDelay(r.ctx, delay); waitErr != nil {
			return schema.NewError(schema.ErrCodeExecution, "run aborted while waiting to retry").
				WithStep(step.Name).WithCause(waitErr)
		}
	}
}

// invoke performs a single handler call, folding a Failed StepResult into an
// error so the retry loop sees one failure shape.
func (r *run) invoke(handler registry.Handler, step schema.PlanStep) error {
	res, err := handler.Execute(r.ctx, r.runContext, step)
	if err != nil {
		return err
	}
	if res != nil && res.Status == schema.StepFailed {
		msg := res.Error
		if msg == "" {
			msg = "handler reported failure"
		}
		return schema.NewError(schema.ErrCodeExecution, msg).WithStep(step.Name)
	}
	return nil
}

// executeOnFailure runs every compensation step regardless of individual
// failures and folds their outcomes into the aggregate status.
func (r *run) executeOnFailure() {
	if len(r.plan.OnFailureSteps) == 0 {
		return
	}

	r.emit(schema.EventOnFailureStarted, "on-failure steps started", "", nil)

	executed, failures := 0, 0
	for _, step := range r.plan.OnFailureSteps {
		skipped := step.Status == schema.StepNotApplicable
		ok := r.executeStep(step, true)
		if !skipped {
			executed++
			if !ok {
				failures++
			}
		}
	}

	switch {
	case failures == 0:
		r.result.OnFailure.Status = schema.OnFailureCompleted
	case failures == executed:
		// Nothing was compensated: systemic failure.
		r.result.OnFailure.Status = schema.OnFailureFailed
	default:
		r.result.OnFailure.Status = schema.OnFailurePartiallyFailed
	}

	r.emit(schema.EventOnFailureCompleted, "on-failure steps completed", "", map[string]any{
		"status": string(r.result.OnFailure.Status),
	})
}

// record appends a step outcome to the right result list.
func (r *run) record(onFailure bool, res schema.StepResult) {
	if onFailure {
		r.result.OnFailure.Steps = append(r.result.OnFailure.Steps, res)
		return
	}
	r.result.Steps = append(r.result.Steps, res)
}

// emit buffers a redacted event and forwards it to the sink. No un-redacted
// event ever leaves the engine.
func (r *run) emit(eventType, message, stepName string, data map[string]any) {
	event := redact.Event(&schema.Event{
		TimestampUTC:  time.Now().UTC(),
		Type:          eventType,
		Message:       message,
		CorrelationID: r.plan.CorrelationID,
		Actor:         r.plan.Request.Actor,
		StepName:      stepName,
		Data:          data,
	})
	r.result.Events = append(r.result.Events, *event)
	if r.executor.sink != nil {
		_ = r.executor.sink.WriteEvent(r.ctx, event)
	}
}

// WriteStepEvent lets handlers publish their own events through the same
// redacting recorder. Empty types default to Custom.
func (r *run) WriteStepEvent(eventType, message, stepName string, data map[string]any) {
	if eventType == "" {
		eventType = schema.EventCustom
	}
	r.emit(eventType, message, stepName, data)
}

// retrySettings resolves the effective retry profile for a step. The second
// return is false when no profile applies (run exactly once).
func (r *run) retrySettings(step schema.PlanStep) (schema.RetrySettings, bool) {
	if step.RetryProfile != "" {
		if settings, ok := r.executor.options.RetryProfiles[step.RetryProfile]; ok {
			return settings, true
		}
	}
	if r.executor.options.DefaultRetry != nil {
		return *r.executor.options.DefaultRetry, true
	}
	return schema.RetrySettings{}, false
}

// providerMap narrows the plan's opaque provider references to the Provider
// contract for handler consumption.
func providerMap(refs map[string]any) map[string]schema.Provider {
	out := make(map[string]schema.Provider, len(refs))
	for name, ref := range refs {
		if p, ok := ref.(schema.Provider); ok {
			out[name] = p
		}
	}
	return out
}
