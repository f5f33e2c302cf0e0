package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchema_BarePathString(t *testing.T) {
	result := ValidateSchema("Request.Changes.Department")
	assert.True(t, result.Valid())
}

func TestValidateSchema_EmptyBarePath(t *testing.T) {
	result := ValidateSchema("")
	assert.False(t, result.Valid())
}

func TestValidateSchema_Operators(t *testing.T) {
	cases := []struct {
		name string
		node any
	}{
		{"equals", map[string]any{"Equals": map[string]any{"Path": "Request.LifecycleEvent", "Value": "Leaver"}}},
		{"notEquals", map[string]any{"NotEquals": map[string]any{"Path": "Request.DesiredState.Type", "Value": "svc"}}},
		{"exists map body", map[string]any{"Exists": map[string]any{"Path": "Request.Changes"}}},
		{"exists bare path", map[string]any{"Exists": "Request.Changes"}},
		{"in list", map[string]any{"In": map[string]any{"Path": "Request.DesiredState.Dept", "Values": []any{"IT", "HR"}}}},
		{"in scalar", map[string]any{"In": map[string]any{"Path": "Request.DesiredState.Dept", "Values": "IT"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, ValidateSchema(tc.node).Valid())
		})
	}
}

func TestValidateSchema_Groups(t *testing.T) {
	node := map[string]any{
		"All": []any{
			map[string]any{"Exists": "Request.Changes.Department"},
			map[string]any{"Any": []any{
				map[string]any{"Equals": map[string]any{"Path": "Request.LifecycleEvent", "Value": "Mover"}},
				map[string]any{"None": []any{"Request.DesiredState.Locked"}},
			}},
		},
	}
	assert.True(t, ValidateSchema(node).Valid())
}

func TestValidateSchema_UnknownKey(t *testing.T) {
	result := ValidateSchema(map[string]any{"Matches": map[string]any{"Path": "x"}})
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "Matches")
}

func TestValidateSchema_MultipleKeysRejected(t *testing.T) {
	node := map[string]any{
		"Equals": map[string]any{"Path": "a", "Value": 1},
		"Exists": "b",
	}
	result := ValidateSchema(node)
	assert.False(t, result.Valid())
}

func TestValidateSchema_EmptyGroup(t *testing.T) {
	result := ValidateSchema(map[string]any{"All": []any{}})
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "at least one child")
}

func TestValidateSchema_InValuesMapRejected(t *testing.T) {
	node := map[string]any{"In": map[string]any{"Path": "a", "Values": map[string]any{"x": 1}}}
	result := ValidateSchema(node)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "scalar or a list")
}

func TestValidateSchema_ExtraOperatorFields(t *testing.T) {
	node := map[string]any{"Equals": map[string]any{"Path": "a", "Value": 1, "Extra": true}}
	result := ValidateSchema(node)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "Extra")
}

func TestValidateSchema_CollectsAllViolations(t *testing.T) {
	// A tree with three independent problems reports all three, not just
	// the first encountered.
	node := map[string]any{
		"All": []any{
			map[string]any{"Equals": map[string]any{"Path": "a"}},
			map[string]any{"In": map[string]any{"Values": []any{"x"}}},
			map[string]any{"Bogus": true},
		},
	}
	result := ValidateSchema(node)
	require.False(t, result.Valid())
	assert.GreaterOrEqual(t, len(result.Errors), 3)
}

func TestValidateSchema_NonMapNonStringNode(t *testing.T) {
	result := ValidateSchema(42)
	assert.False(t, result.Valid())
}
