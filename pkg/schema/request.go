package schema

import (
	"strings"

	"github.com/google/uuid"
)

// LifecycleRequestInput carries the caller-supplied fields for a request.
// Changes stays nil unless explicitly provided; the other maps default to
// empty.
type LifecycleRequestInput struct {
	LifecycleEvent string
	IdentityKeys   map[string]any
	DesiredState   map[string]any
	Changes        map[string]any
	CorrelationID  string
	Actor          string
}

// LifecycleRequest is the immutable request a plan is built from. Construct
// it with NewLifecycleRequest; do not mutate it afterwards.
type LifecycleRequest struct {
	LifecycleEvent string         `json:"lifecycle_event"`
	IdentityKeys   map[string]any `json:"identity_keys"`
	DesiredState   map[string]any `json:"desired_state"`
	Changes        map[string]any `json:"changes,omitempty"`
	CorrelationID  string         `json:"correlation_id"`
	Actor          string         `json:"actor,omitempty"`
}

// NewLifecycleRequest validates and normalizes the input into a request.
// A missing correlation ID is defaulted to a new UUID here, once — planning
// never generates identifiers.
func NewLifecycleRequest(in LifecycleRequestInput) (*LifecycleRequest, error) {
	event := strings.TrimSpace(in.LifecycleEvent)
	if event == "" {
		return nil, NewError(ErrCodeValidation, "lifecycle event is required")
	}

	correlationID := strings.TrimSpace(in.CorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	req := &LifecycleRequest{
		LifecycleEvent: event,
		IdentityKeys:   cloneMap(in.IdentityKeys),
		DesiredState:   cloneMap(in.DesiredState),
		CorrelationID:  correlationID,
		Actor:          strings.TrimSpace(in.Actor),
	}
	if in.Changes != nil {
		req.Changes = cloneMap(in.Changes)
	}
	return req, nil
}

// cloneMap shallow-copies a map, defaulting nil to empty.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
