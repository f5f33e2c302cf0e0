package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idle-engine/idle/internal/value"
)

func evalCtx() value.Value {
	return value.FromAny(map[string]any{
		"Request": map[string]any{
			"LifecycleEvent": "Leaver",
			"IdentityKeys":   map[string]any{"EmployeeId": "E123"},
			"DesiredState": map[string]any{
				"Department": "IT",
				"Age":        30,
				"Nickname":   nil,
			},
			"Changes": map[string]any{
				"Department": map[string]any{"Old": "HR", "New": "IT"},
			},
		},
	})
}

func TestEvaluate_Equals(t *testing.T) {
	node := map[string]any{"Equals": map[string]any{"Path": "Request.LifecycleEvent", "Value": "Leaver"}}
	got, err := Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_EqualsStringCoercion(t *testing.T) {
	// Numeric 30 in the context matches the string "30": comparisons are
	// string-coerced on both sides.
	node := map[string]any{"Equals": map[string]any{"Path": "Request.DesiredState.Age", "Value": "30"}}
	got, err := Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.True(t, got)

	node = map[string]any{"Equals": map[string]any{"Path": "Request.DesiredState.Age", "Value": 30}}
	got, err = Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_EqualsAbsentPath(t *testing.T) {
	node := map[string]any{"Equals": map[string]any{"Path": "Request.DesiredState.Missing", "Value": "x"}}
	got, err := Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_NotEqualsAbsentPathIsTrue(t *testing.T) {
	node := map[string]any{"NotEquals": map[string]any{"Path": "Request.DesiredState.Missing", "Value": "x"}}
	got, err := Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_ExistsVariants(t *testing.T) {
	ctx := evalCtx()

	got, err := Evaluate("Request.Changes.Department", ctx)
	require.NoError(t, err)
	assert.True(t, got, "bare string is Exists shorthand")

	got, err = Evaluate(map[string]any{"Exists": "Request.Changes.Department"}, ctx)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Evaluate(map[string]any{"Exists": map[string]any{"Path": "Request.Changes.Department"}}, ctx)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_ExistsNullIsAbsent(t *testing.T) {
	got, err := Evaluate("Request.DesiredState.Nickname", evalCtx())
	require.NoError(t, err)
	assert.False(t, got, "explicit null resolves as absent")
}

func TestEvaluate_ContextPrefixStripped(t *testing.T) {
	got, err := Evaluate("context.Request.LifecycleEvent", evalCtx())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_InList(t *testing.T) {
	node := map[string]any{"In": map[string]any{
		"Path":   "Request.DesiredState.Department",
		"Values": []any{"HR", "IT", "Legal"},
	}}
	got, err := Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.True(t, got)

	node = map[string]any{"In": map[string]any{
		"Path":   "Request.DesiredState.Department",
		"Values": []any{"Sales"},
	}}
	got, err = Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_InScalarDegeneratesToEquals(t *testing.T) {
	node := map[string]any{"In": map[string]any{
		"Path":   "Request.DesiredState.Department",
		"Values": "IT",
	}}
	got, err := Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_InListCoercesMembers(t *testing.T) {
	node := map[string]any{"In": map[string]any{
		"Path":   "Request.DesiredState.Age",
		"Values": []any{"29", "30"},
	}}
	got, err := Evaluate(node, evalCtx())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_Groups(t *testing.T) {
	ctx := evalCtx()

	all := map[string]any{"All": []any{
		"Request.Changes.Department",
		map[string]any{"Equals": map[string]any{"Path": "Request.LifecycleEvent", "Value": "Leaver"}},
	}}
	got, err := Evaluate(all, ctx)
	require.NoError(t, err)
	assert.True(t, got)

	anyNode := map[string]any{"Any": []any{
		"Request.DesiredState.Missing",
		"Request.Changes.Department",
	}}
	got, err = Evaluate(anyNode, ctx)
	require.NoError(t, err)
	assert.True(t, got)

	none := map[string]any{"None": []any{
		"Request.DesiredState.Missing",
	}}
	got, err = Evaluate(none, ctx)
	require.NoError(t, err)
	assert.True(t, got)

	none = map[string]any{"None": []any{
		"Request.Changes.Department",
	}}
	got, err = Evaluate(none, ctx)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_SingletonGroupEqualsChild(t *testing.T) {
	ctx := evalCtx()
	child := map[string]any{"Equals": map[string]any{"Path": "Request.LifecycleEvent", "Value": "Leaver"}}

	direct, err := Evaluate(child, ctx)
	require.NoError(t, err)

	viaAll, err := Evaluate(map[string]any{"All": []any{child}}, ctx)
	require.NoError(t, err)
	viaAny, err := Evaluate(map[string]any{"Any": []any{child}}, ctx)
	require.NoError(t, err)

	assert.Equal(t, direct, viaAll)
	assert.Equal(t, direct, viaAny)
}

func TestEvaluate_TraversalThroughNonMap(t *testing.T) {
	got, err := Evaluate("Request.LifecycleEvent.Deeper", evalCtx())
	require.NoError(t, err)
	assert.False(t, got, "descending through a scalar is absence, not an error")
}

func TestEvaluate_InvalidNodeType(t *testing.T) {
	_, err := Evaluate(42, evalCtx())
	require.Error(t, err)
}
