// Package redact produces secrets-scrubbed deep copies of data before it
// crosses any output boundary: event buffering, sink delivery, plan export,
// and result assembly. The source value is never mutated.
package redact

import (
	"reflect"
	"strings"

	"github.com/idle-engine/idle/pkg/schema"
)

// Marker replaces every redacted value.
const Marker = "[REDACTED]"

// denyKeys is the fixed deny-list. A key matches when its lowercase form
// contains any entry, so "userPassword" and "ClientSecret" both match.
var denyKeys = []string{
	"password",
	"token",
	"secret",
	"credential",
	"apikey",
	"clientsecret",
	"accesstoken",
	"refreshtoken",
	"privatekey",
	"passphrase",
	"authsession",
	"connectionstring",
	"samlassertion",
}

// Value returns a redacted deep copy of v. Values under denied keys become
// the marker; values whose runtime shape is an opaque secret/session type
// become the marker irrespective of key. Previously-visited containers are
// replaced with the marker rather than re-traversed, so cyclic data
// terminates.
func Value(v any) any {
	return redact(v, false, make(map[uintptr]bool))
}

// Map redacts a string-keyed map, preserving nil-ness.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := Value(m).(map[string]any)
	return out
}

// Event returns a copy of an event with redacted data. The original event is
// untouched.
func Event(e *schema.Event) *schema.Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Data = Map(e.Data)
	return &clone
}

// DeniedKey reports whether a key case-insensitively matches the deny-list.
func DeniedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, denied := range denyKeys {
		if strings.Contains(lower, denied) {
			return true
		}
	}
	return false
}

func redact(v any, keyDenied bool, visited map[uintptr]bool) any {
	if v == nil {
		if keyDenied {
			return Marker
		}
		return nil
	}

	// Opaque secret/session shapes are replaced outright, whatever the key.
	if _, sensitive := v.(schema.Sensitive); sensitive {
		return Marker
	}
	if keyDenied {
		return Marker
	}

	switch t := v.(type) {
	case map[string]any:
		ptr := reflect.ValueOf(t).Pointer()
		if visited[ptr] {
			return Marker
		}
		visited[ptr] = true
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = redact(el, DeniedKey(k), visited)
		}
		delete(visited, ptr)
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, el := range t {
			if DeniedKey(k) {
				out[k] = Marker
			} else {
				out[k] = el
			}
		}
		return out
	case []any:
		ptr := reflect.ValueOf(t).Pointer()
		if len(t) > 0 {
			if visited[ptr] {
				return Marker
			}
			visited[ptr] = true
		}
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = redact(el, false, visited)
		}
		delete(visited, ptr)
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
