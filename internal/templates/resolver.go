package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/idle-engine/idle/internal/value"
	"github.com/idle-engine/idle/pkg/schema"
)

// fromFileKey is the single reserved map directive: {FromFile: "<path>"}
// loads external text (e.g. an email body) with uniform substitution
// semantics.
const fromFileKey = "FromFile"

// Resolver applies placeholder substitution to step parameters.
type Resolver struct {
	scope   *Scope
	workDir string
}

// NewResolver creates a Resolver over the given request scope. workDir
// anchors relative FromFile paths; empty means the process working directory.
func NewResolver(scope *Scope, workDir string) *Resolver {
	return &Resolver{scope: scope, workDir: workDir}
}

// Resolve walks maps (key-preserving), lists (order-preserving), and strings,
// substituting placeholders. The input is never mutated; containers are
// rebuilt.
func (r *Resolver) Resolve(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return r.ResolveString(t)
	case map[string]any:
		if path, ok := fromFileDirective(t); ok {
			return r.resolveFromFile(path)
		}
		out := make(map[string]any, len(t))
		for k, el := range t {
			resolved, err := r.Resolve(el)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			resolved, err := r.Resolve(el)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// ResolveString substitutes placeholders in one string. A pure placeholder
// (the whole string is exactly one {{Path}}, modulo surrounding whitespace)
// yields the typed underlying value; any other placement forces string
// interpolation.
func (r *Resolver) ResolveString(s string) (any, error) {
	tokens, err := scan(s)
	if err != nil {
		return nil, err
	}

	if path, pure := pureToken(tokens); pure {
		val, err := r.resolvePlaceholder(path)
		if err != nil {
			return nil, err
		}
		return val.Any(), nil
	}

	var out strings.Builder
	out.Grow(len(s))
	for _, tok := range tokens {
		switch tok.kind {
		case tokenLiteral:
			out.WriteString(tok.text)
		case tokenEscape:
			out.WriteString("{{")
		case tokenPlaceholder:
			val, err := r.resolvePlaceholder(tok.text)
			if err != nil {
				return nil, err
			}
			out.WriteString(val.String())
		}
	}
	return out.String(), nil
}

// resolvePlaceholder resolves one path and enforces the scalar and
// non-credential constraints shared by both modes.
func (r *Resolver) resolvePlaceholder(path string) (value.Value, error) {
	val, err := r.scope.Resolve(path)
	if err != nil {
		return value.Null, err
	}
	if _, sensitive := val.Any().(schema.Sensitive); sensitive {
		return value.Null, schema.NewErrorf(schema.ErrCodeSecurity,
			"placeholder %q resolves to a credential-shaped value; secrets never pass through templates", path)
	}
	if !val.IsScalar() {
		return value.Null, schema.NewErrorf(schema.ErrCodeTemplate,
			"placeholder %q resolves to a non-scalar value", path)
	}
	return val, nil
}

// resolveFromFile template-resolves the path, loads the file as UTF-8 text,
// and resolves the loaded text itself.
func (r *Resolver) resolveFromFile(rawPath string) (any, error) {
	resolved, err := r.ResolveString(rawPath)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%v", resolved)

	if !filepath.IsAbs(path) {
		base := r.workDir
		if base == "" {
			if base, err = os.Getwd(); err != nil {
				return nil, schema.NewError(schema.ErrCodeTemplate, "cannot determine working directory").WithCause(err)
			}
		}
		path = filepath.Join(base, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeTemplate, "FromFile %q cannot be read", path).WithCause(err)
	}
	if !utf8.Valid(data) {
		return nil, schema.NewErrorf(schema.ErrCodeTemplate, "FromFile %q is not valid UTF-8 text", path)
	}

	return r.ResolveString(string(data))
}

// fromFileDirective reports whether the map is exactly a FromFile directive.
func fromFileDirective(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	raw, ok := m[fromFileKey]
	if !ok {
		return "", false
	}
	path, ok := raw.(string)
	return path, ok
}
