// Package idle is the public entry point: configure once, then plan,
// execute, and export identity lifecycle workflows. Everything underneath is
// deterministic; the only nondeterminism a host sees is the correlation ID
// generated for requests that arrive without one.
package idle

import (
	"context"
	"log/slog"

	"github.com/idle-engine/idle/internal/engine"
	"github.com/idle-engine/idle/internal/planner"
	"github.com/idle-engine/idle/pkg/registry"
	"github.com/idle-engine/idle/pkg/schema"
)

// Config gathers the host-supplied collaborators for an Engine. Handlers is
// required; everything else is optional.
type Config struct {
	// Handlers binds step types to named handler implementations.
	Handlers *registry.HandlerRegistry

	// Metadata overrides or extends the built-in step-type catalog.
	Metadata map[string]registry.StepMetadata

	// Broker supplies authenticated sessions to handlers on demand.
	Broker schema.AuthSessionBroker

	// Sink receives every redacted run event, e.g. a store.AuditLog.
	Sink schema.EventSink

	// Logger receives structured diagnostics. Defaults to a discard logger.
	Logger *slog.Logger

	// Options hold retry profiles, WhatIf, working directory and the other
	// per-engine execution knobs.
	Options schema.ExecutionOptions
}

// Engine plans and executes lifecycle workflows. Safe for concurrent use;
// construction snapshots the handler registry, so later registry mutations do
// not affect an existing Engine.
type Engine struct {
	builder  *planner.Builder
	executor *engine.Executor
	options  schema.ExecutionOptions
}

// New validates the configuration and builds an Engine.
func New(cfg Config) (*Engine, error) {
	metadata, err := registry.NewMetadataRegistry(cfg.Metadata)
	if err != nil {
		return nil, err
	}
	builder, err := planner.NewBuilder(metadata, cfg.Sink)
	if err != nil {
		return nil, err
	}
	executor, err := engine.NewExecutor(cfg.Handlers, cfg.Options, cfg.Broker, cfg.Sink, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		builder:  builder,
		executor: executor,
		options:  cfg.Options,
	}, nil
}

// NewPlan validates the workflow document against the request and providers
// and produces an immutable plan. No provider is contacted and no side effect
// occurs; planning the same inputs twice yields the same plan.
func (e *Engine) NewPlan(
	ctx context.Context,
	workflow map[string]any,
	input schema.LifecycleRequestInput,
	providers map[string]schema.Provider,
) (*schema.Plan, error) {
	req, err := schema.NewLifecycleRequest(input)
	if err != nil {
		return nil, err
	}
	return e.builder.Build(ctx, workflow, req, providers, e.options)
}

// Execute runs a previously built plan. Step failures are reported inside the
// result; the error return is reserved for invariant violations.
func (e *Engine) Execute(ctx context.Context, plan *schema.Plan) (*schema.ExecutionResult, error) {
	return e.executor.Execute(ctx, plan)
}

// ExportPlan serializes a plan to the schema-versioned JSON document with all
// sensitive values redacted.
func (e *Engine) ExportPlan(plan *schema.Plan) ([]byte, error) {
	return planner.Export(plan, e.options)
}
