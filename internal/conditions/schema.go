// Package conditions implements the declarative boolean condition language
// used for step applicability. A condition is pure data: group nodes
// (All/Any/None) over operator nodes (Equals/NotEquals/Exists/In). Schema
// validation is closed-world and runs as a separate pass before evaluation.
package conditions

import (
	"fmt"

	"github.com/idle-engine/idle/pkg/schema"
)

// Node keys recognized by the condition language.
const (
	keyAll       = "All"
	keyAny       = "Any"
	keyNone      = "None"
	keyEquals    = "Equals"
	keyNotEquals = "NotEquals"
	keyExists    = "Exists"
	keyIn        = "In"
)

var groupKeys = map[string]bool{keyAll: true, keyAny: true, keyNone: true}
var operatorKeys = map[string]bool{keyEquals: true, keyNotEquals: true, keyExists: true, keyIn: true}

// ValidateSchema checks a condition tree and collects every violation found,
// not just the first. It must be called before Evaluate.
func ValidateSchema(node any) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	validateNode(node, "/", result)
	return result
}

func validateNode(node any, path string, result *schema.ValidationResult) {
	switch n := node.(type) {
	case string:
		// Bare string is shorthand for Exists.
		if n == "" {
			result.AddError(path, schema.ErrCodeCondition, "bare path must not be empty")
		}
	case map[string]any:
		validateMapNode(n, path, result)
	default:
		result.AddError(path, schema.ErrCodeCondition,
			fmt.Sprintf("condition node must be a map or a bare path string, got %T", node))
	}
}

func validateMapNode(n map[string]any, path string, result *schema.ValidationResult) {
	var recognized []string
	for k := range n {
		if groupKeys[k] || operatorKeys[k] {
			recognized = append(recognized, k)
		} else {
			result.AddError(path, schema.ErrCodeCondition, fmt.Sprintf("unknown condition key %q", k))
		}
	}

	switch {
	case len(recognized) == 0:
		result.AddError(path, schema.ErrCodeCondition, "condition node carries no recognized key")
		return
	case len(recognized) > 1:
		result.AddError(path, schema.ErrCodeCondition,
			fmt.Sprintf("condition node must carry exactly one key, found %d", len(recognized)))
		return
	}

	key := recognized[0]
	body := n[key]
	childPath := path + key

	if groupKeys[key] {
		children, ok := body.([]any)
		if !ok {
			result.AddError(childPath, schema.ErrCodeCondition,
				fmt.Sprintf("%s requires a list of child conditions, got %T", key, body))
			return
		}
		if len(children) == 0 {
			result.AddError(childPath, schema.ErrCodeCondition, key+" requires at least one child condition")
			return
		}
		for i, child := range children {
			validateNode(child, fmt.Sprintf("%s/%d/", childPath, i), result)
		}
		return
	}

	validateOperator(key, body, childPath, result)
}

func validateOperator(key string, body any, path string, result *schema.ValidationResult) {
	if key == keyExists {
		// Exists accepts a bare path string or {Path: ...}.
		if s, ok := body.(string); ok {
			if s == "" {
				result.AddError(path, schema.ErrCodeCondition, "Exists path must not be empty")
			}
			return
		}
	}

	m, ok := body.(map[string]any)
	if !ok {
		result.AddError(path, schema.ErrCodeCondition,
			fmt.Sprintf("%s requires a map body, got %T", key, body))
		return
	}

	p, ok := m["Path"].(string)
	if !ok || p == "" {
		result.AddError(path, schema.ErrCodeCondition, key+" requires a non-empty string Path")
	}

	switch key {
	case keyEquals, keyNotEquals:
		if _, present := m["Value"]; !present {
			result.AddError(path, schema.ErrCodeCondition, key+" requires a Value")
		}
		checkNoExtraKeys(m, path, result, "Path", "Value")
	case keyIn:
		values, present := m["Values"]
		if !present {
			result.AddError(path, schema.ErrCodeCondition, "In requires Values")
		} else if _, isMap := values.(map[string]any); isMap {
			result.AddError(path, schema.ErrCodeCondition, "In Values must be a scalar or a list, not a map")
		}
		checkNoExtraKeys(m, path, result, "Path", "Values")
	case keyExists:
		checkNoExtraKeys(m, path, result, "Path")
	}
}

func checkNoExtraKeys(m map[string]any, path string, result *schema.ValidationResult, allowed ...string) {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	for k := range m {
		if !allowedSet[k] {
			result.AddError(path, schema.ErrCodeCondition, fmt.Sprintf("unknown operator field %q", k))
		}
	}
}
