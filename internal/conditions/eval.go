package conditions

import (
	"strings"

	"github.com/idle-engine/idle/internal/value"
	"github.com/idle-engine/idle/pkg/schema"
)

// Evaluate computes the boolean result of a validated condition tree against
// the context. Callers must run ValidateSchema first; an invalid node found
// here is reported as an error rather than guessed at.
//
// Comparisons are always performed on the string representation of both
// operands. This is deliberate: provider data shapes are heterogeneous and
// predictable coercion beats type-aware surprises.
func Evaluate(node any, ctx value.Value) (bool, error) {
	switch n := node.(type) {
	case string:
		return resolvePath(ctx, n).found, nil
	case map[string]any:
		return evalMapNode(n, ctx)
	default:
		return false, schema.NewErrorf(schema.ErrCodeCondition,
			"cannot evaluate condition node of type %T", node)
	}
}

func evalMapNode(n map[string]any, ctx value.Value) (bool, error) {
	for key, body := range n {
		switch key {
		case keyAll:
			return evalAll(body, ctx)
		case keyAny:
			return evalAny(body, ctx)
		case keyNone:
			hit, err := evalAny(body, ctx)
			if err != nil {
				return false, err
			}
			return !hit, nil
		case keyEquals, keyNotEquals, keyExists, keyIn:
			return evalOperator(key, body, ctx)
		}
	}
	return false, schema.NewError(schema.ErrCodeCondition, "condition node carries no recognized key")
}

// evalAll is logical AND with short-circuit on the first false child.
func evalAll(body any, ctx value.Value) (bool, error) {
	children, ok := body.([]any)
	if !ok {
		return false, schema.NewError(schema.ErrCodeCondition, "group body must be a list")
	}
	for _, child := range children {
		r, err := Evaluate(child, ctx)
		if err != nil {
			return false, err
		}
		if !r {
			return false, nil
		}
	}
	return true, nil
}

// evalAny is logical OR with short-circuit on the first true child.
func evalAny(body any, ctx value.Value) (bool, error) {
	children, ok := body.([]any)
	if !ok {
		return false, schema.NewError(schema.ErrCodeCondition, "group body must be a list")
	}
	for _, child := range children {
		r, err := Evaluate(child, ctx)
		if err != nil {
			return false, err
		}
		if r {
			return true, nil
		}
	}
	return false, nil
}

func evalOperator(key string, body any, ctx value.Value) (bool, error) {
	// Exists shorthand: bare string path.
	if key == keyExists {
		if p, ok := body.(string); ok {
			return resolvePath(ctx, p).found, nil
		}
	}

	m, ok := body.(map[string]any)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeCondition, "%s body must be a map", key)
	}
	path, _ := m["Path"].(string)
	resolved := resolvePath(ctx, path)

	switch key {
	case keyExists:
		return resolved.found, nil
	case keyEquals:
		if !resolved.found {
			return false, nil
		}
		return resolved.val.String() == value.FromAny(m["Value"]).String(), nil
	case keyNotEquals:
		if !resolved.found {
			return true, nil
		}
		return resolved.val.String() != value.FromAny(m["Value"]).String(), nil
	case keyIn:
		if !resolved.found {
			return false, nil
		}
		lhs := resolved.val.String()
		rhs := value.FromAny(m["Values"])
		if items := rhs.Items(); items != nil {
			for _, item := range items {
				if lhs == item.String() {
					return true, nil
				}
			}
			return false, nil
		}
		// Scalar right-hand side degenerates to Equals.
		return lhs == rhs.String(), nil
	}
	return false, schema.NewErrorf(schema.ErrCodeCondition, "unknown operator %q", key)
}

// resolution is the outcome of a path lookup: found=false means any segment
// was missing or a null intermediate was hit.
type resolution struct {
	val   value.Value
	found bool
}

// resolvePath walks dot-separated segments over the context. An optional
// "context." prefix is stripped for readability and has no semantic effect.
func resolvePath(ctx value.Value, path string) resolution {
	path = strings.TrimPrefix(path, "context.")
	if path == "" {
		return resolution{}
	}

	current := ctx
	for _, seg := range strings.Split(path, ".") {
		if current.IsNull() {
			return resolution{}
		}
		next, ok := current.Field(seg)
		if !ok {
			return resolution{}
		}
		current = next
	}
	if current.IsNull() {
		return resolution{}
	}
	return resolution{val: current, found: true}
}
