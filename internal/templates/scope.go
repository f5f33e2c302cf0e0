// Package templates resolves {{Path}} placeholders in step parameters
// against an allowlisted view of the lifecycle request. Anything outside the
// allowlist is a security error, not a silent no-op.
package templates

import (
	"regexp"
	"strings"

	"github.com/idle-engine/idle/internal/value"
	"github.com/idle-engine/idle/pkg/schema"
)

// pathPattern constrains placeholder paths: identifier segments joined by
// dots, first segment starting with a letter.
var pathPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// Allowed roots under Request. "Input" is a transparent alias for
// DesiredState so workflows written against either name resolve identically.
var allowedRoots = map[string]bool{
	"Input":          true,
	"DesiredState":   true,
	"IdentityKeys":   true,
	"Changes":        true,
	"LifecycleEvent": true,
	"CorrelationId":  true,
	"Actor":          true,
}

// Scope is the resolved view of a request available to placeholders.
type Scope struct {
	root value.Value
}

// NewScope builds the allowlisted request view.
func NewScope(req *schema.LifecycleRequest) *Scope {
	fields := map[string]value.Value{
		"DesiredState":   value.FromAny(req.DesiredState),
		"Input":          value.FromAny(req.DesiredState),
		"IdentityKeys":   value.FromAny(req.IdentityKeys),
		"LifecycleEvent": value.FromAny(req.LifecycleEvent),
		"CorrelationId":  value.FromAny(req.CorrelationID),
	}
	if req.Changes != nil {
		fields["Changes"] = value.FromAny(req.Changes)
	}
	if req.Actor != "" {
		fields["Actor"] = value.FromAny(req.Actor)
	}
	return &Scope{root: value.Map(fields)}
}

// Resolve validates the placeholder path and returns the underlying value.
// Missing or null resolution is an error: placeholders never silently expand
// to nothing.
func (s *Scope) Resolve(path string) (value.Value, error) {
	if !pathPattern.MatchString(path) {
		return value.Null, schema.NewErrorf(schema.ErrCodeTemplate,
			"invalid placeholder path syntax %q", path)
	}

	segments := strings.Split(path, ".")
	if segments[0] != "Request" {
		return value.Null, schema.NewErrorf(schema.ErrCodeSecurity,
			"placeholder root %q is not allowed; paths must start with Request", segments[0])
	}
	if len(segments) < 2 || !allowedRoots[segments[1]] {
		return value.Null, schema.NewErrorf(schema.ErrCodeSecurity,
			"placeholder path %q is outside the allowed request surface", path)
	}

	current := s.root
	for _, seg := range segments[1:] {
		next, ok := current.Field(seg)
		if !ok {
			return value.Null, schema.NewErrorf(schema.ErrCodeTemplate,
				"placeholder %q resolves to a missing value", path)
		}
		current = next
	}
	if current.IsNull() {
		return value.Null, schema.NewErrorf(schema.ErrCodeTemplate,
			"placeholder %q resolves to null", path)
	}
	return current, nil
}
