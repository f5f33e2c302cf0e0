package registry

import (
	"context"
	"reflect"
	"sync"

	"github.com/idle-engine/idle/pkg/schema"
)

// StepEventWriter lets a handler emit events through the engine's redacting
// recorder.
type StepEventWriter interface {
	WriteStepEvent(eventType, message, stepName string, data map[string]any)
}

// RunContext is the surface a handler sees during execution: providers, the
// event writer, and session acquisition through the broker.
type RunContext struct {
	Providers map[string]schema.Provider
	Broker    schema.AuthSessionBroker
	Events    StepEventWriter
}

// AcquireAuthSession obtains a session from the configured broker. Session
// contents are opaque to the core; handlers interpret them.
func (rc *RunContext) AcquireAuthSession(ctx context.Context, name string, options map[string]any) (schema.AuthSession, error) {
	if rc.Broker == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "no auth session broker configured")
	}
	return rc.Broker.AcquireAuthSession(ctx, name, options)
}

// WriteEvent forwards a handler-originated event to the engine's recorder.
func (rc *RunContext) WriteEvent(eventType, message, stepName string, data map[string]any) {
	if rc.Events != nil {
		rc.Events.WriteStepEvent(eventType, message, stepName, data)
	}
}

// Handler is the executable unit bound to a step type. Implementations are
// named types registered by the host at process start — never parsed from
// workflow content.
type Handler interface {
	Execute(ctx context.Context, rc *RunContext, step schema.PlanStep) (*schema.StepResult, error)
}

// HandlerRegistry resolves step types to handlers through an indirection of
// names: types bind to handler names, names bind to handler implementations.
type HandlerRegistry struct {
	mu     sync.RWMutex
	byName map[string]Handler
	byType map[string]string
}

// NewHandlerRegistry creates an empty HandlerRegistry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byName: make(map[string]Handler),
		byType: make(map[string]string),
	}
}

// RegisterHandler adds a named handler. Bare function values are rejected:
// the only sanctioned way to inject behavior is a named, statically
// resolvable implementation. Duplicate names conflict.
func (r *HandlerRegistry) RegisterHandler(name string, h Handler) error {
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "handler name is empty")
	}
	if h == nil {
		return schema.NewError(schema.ErrCodeValidation, "handler is nil")
	}
	if err := EnsureNamedReference("handler", h); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "handler %q already registered", name)
	}
	r.byName[name] = h
	return nil
}

// Bind maps a step type to a registered handler name.
func (r *HandlerRegistry) Bind(stepType, handlerName string) error {
	if stepType == "" {
		return schema.NewError(schema.ErrCodeValidation, "step type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[handlerName]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "handler %q not registered", handlerName)
	}
	r.byType[stepType] = handlerName
	return nil
}

// Resolve returns the handler bound to a step type.
func (r *HandlerRegistry) Resolve(stepType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.byType[stepType]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeHandler,
			"no handler bound for step type %q", stepType)
	}
	h, ok := r.byName[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeHandler,
			"handler %q bound to step type %q is not registered", name, stepType)
	}
	return h, nil
}

// Snapshot returns a read-only copy of the registry. The engine clones
// before use and never mutates host-supplied maps in place.
func (r *HandlerRegistry) Snapshot() *HandlerRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := NewHandlerRegistry()
	for name, h := range r.byName {
		clone.byName[name] = h
	}
	for stepType, name := range r.byType {
		clone.byType[stepType] = name
	}
	return clone
}

// EnsureNamedReference rejects inline executable closures at the trust
// boundary. Handlers and event sinks must be named types; a bare func value
// where data or a named reference is required is a security error. This is
// enforced, not advisory.
func EnsureNamedReference(kind string, v any) error {
	if v == nil {
		return nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return schema.NewErrorf(schema.ErrCodeSecurity,
			"%s must be a named type, not an inline executable value", kind)
	}
	return nil
}
