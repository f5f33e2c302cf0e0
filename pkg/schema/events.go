package schema

import (
	"context"
	"time"
)

// Event type constants. Ordering of emitted events is the engine's total
// order of occurrence; tests assert on it.
const (
	EventRunStarted   = "RunStarted"
	EventRunCompleted = "RunCompleted"
	EventRunFailed    = "RunFailed"

	EventStepStarted       = "StepStarted"
	EventStepCompleted     = "StepCompleted"
	EventStepFailed        = "StepFailed"
	EventStepRetrying      = "StepRetrying"
	EventStepNotApplicable = "StepNotApplicable"

	EventOnFailureStarted       = "OnFailureStarted"
	EventOnFailureStepStarted   = "OnFailureStepStarted"
	EventOnFailureStepCompleted = "OnFailureStepCompleted"
	EventOnFailureStepFailed    = "OnFailureStepFailed"
	EventOnFailureCompleted     = "OnFailureCompleted"

	EventCapabilityNormalized = "CapabilityNormalized"
	EventCustom               = "Custom"
)

// Event is one append-only entry in a run's audit trail. Data is redacted
// before the event leaves the engine.
type Event struct {
	TimestampUTC  time.Time      `json:"timestamp_utc"`
	Type          string         `json:"type"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlation_id"`
	Actor         string         `json:"actor,omitempty"`
	StepName      string         `json:"step_name,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// EventSink receives redacted events as they are emitted. Implementations
// must be named types; the engine rejects bare function values at the trust
// boundary.
type EventSink interface {
	WriteEvent(ctx context.Context, event *Event) error
}

// Provider is a backend connector. The core only ever calls GetCapabilities;
// domain operations are invoked by individual step handlers.
type Provider interface {
	GetCapabilities() []string
}

// Sensitive marks opaque secret or session values. The template resolver
// refuses to surface them and the redaction layer replaces them outright,
// whatever key they hang off.
type Sensitive interface {
	SensitiveValue()
}

// AuthSession is an opaque credentialed session produced by a broker. Its
// shape is interpreted by step handlers, never by the core.
type AuthSession interface {
	Sensitive
}

// AuthSessionBroker acquires sessions on behalf of step handlers. Secret
// acquisition goes through the broker, never through template paths.
type AuthSessionBroker interface {
	AcquireAuthSession(ctx context.Context, name string, options map[string]any) (AuthSession, error)
}
