package capabilities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idle-engine/idle/pkg/schema"
)

type fakeProvider struct {
	caps []string
}

func (p *fakeProvider) GetCapabilities() []string { return p.caps }

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("IdLE.Identity.Disable"))
	assert.NoError(t, Validate("AD.DisableUser"))
	assert.Error(t, Validate("NoDots"))
	assert.Error(t, Validate(".LeadingDot"))
	assert.Error(t, Validate("Trailing.Dot."))
	assert.Error(t, Validate("has space.X"))
	assert.Error(t, Validate(""))
}

func TestNormalize_LegacyTranslation(t *testing.T) {
	canonical, translated := Normalize("AD.DisableUser")
	assert.True(t, translated)
	assert.Equal(t, "IdLE.Identity.Disable", canonical)
}

func TestNormalize_Idempotent(t *testing.T) {
	once, _ := Normalize("AD.DisableUser")
	twice, translated := Normalize(once)
	assert.False(t, translated)
	assert.Equal(t, once, twice)
}

func TestNormalize_UnknownPassthrough(t *testing.T) {
	got, translated := Normalize("Custom.Provider.Thing")
	assert.False(t, translated)
	assert.Equal(t, "Custom.Provider.Thing", got)
}

func TestAggregate_SortedDeduplicatedUnion(t *testing.T) {
	providers := map[string]schema.Provider{
		"ad":   &fakeProvider{caps: []string{"IdLE.Identity.Disable", "IdLE.Group.RemoveMemberships"}},
		"mail": &fakeProvider{caps: []string{"IdLE.Mailbox.ConvertToShared", "IdLE.Identity.Disable"}},
	}

	available, normalized, err := Aggregate(providers)
	require.NoError(t, err)
	assert.Empty(t, normalized)
	assert.Equal(t, []string{
		"IdLE.Group.RemoveMemberships",
		"IdLE.Identity.Disable",
		"IdLE.Mailbox.ConvertToShared",
	}, available)
}

func TestAggregate_NormalizesLegacyAndReports(t *testing.T) {
	providers := map[string]schema.Provider{
		"legacy-ad": &fakeProvider{caps: []string{"AD.DisableUser", "AD.RemoveGroups"}},
	}

	available, normalized, err := Aggregate(providers)
	require.NoError(t, err)
	assert.Equal(t, []string{"IdLE.Group.RemoveMemberships", "IdLE.Identity.Disable"}, available)
	assert.Equal(t, []string{
		"AD.DisableUser -> IdLE.Identity.Disable",
		"AD.RemoveGroups -> IdLE.Group.RemoveMemberships",
	}, normalized)
}

func TestAggregate_InvalidCapability(t *testing.T) {
	providers := map[string]schema.Provider{
		"bad": &fakeProvider{caps: []string{"not an identifier"}},
	}
	_, _, err := Aggregate(providers)
	require.Error(t, err)

	var ee *schema.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, schema.ErrCodeValidation, ee.Code)
}

func TestAggregate_NilProvider(t *testing.T) {
	_, _, err := Aggregate(map[string]schema.Provider{"nil": nil})
	assert.Error(t, err)
}

func TestSortedSet(t *testing.T) {
	out, normalized, err := SortedSet([]string{"AD.DisableUser", "IdLE.Identity.Disable", "IdLE.Notify.Email"})
	require.NoError(t, err)
	assert.Equal(t, []string{"IdLE.Identity.Disable", "IdLE.Notify.Email"}, out,
		"legacy and canonical forms of the same capability collapse")
	assert.Equal(t, []string{"AD.DisableUser -> IdLE.Identity.Disable"}, normalized)
}

func TestCheck_AllSatisfied(t *testing.T) {
	steps := []schema.PlanStep{
		{Name: "disable", RequiresCapabilities: []string{"IdLE.Identity.Disable"}},
	}
	assert.NoError(t, Check(steps, []string{"IdLE.Identity.Disable"}))
}

func TestCheck_MissingReportDeterministic(t *testing.T) {
	steps := []schema.PlanStep{
		{Name: "z-step", RequiresCapabilities: []string{"IdLE.Mailbox.SetForwarding"}},
		{Name: "a-step", RequiresCapabilities: []string{"IdLE.Identity.Disable", "IdLE.Mailbox.SetForwarding"}},
	}
	available := []string{"IdLE.Notify.Email"}

	err := Check(steps, available)
	require.Error(t, err)

	var ee *schema.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, schema.ErrCodeCapability, ee.Code)
	assert.Equal(t, []string{"IdLE.Identity.Disable", "IdLE.Mailbox.SetForwarding"}, ee.Details["missing_capabilities"])
	assert.Equal(t, []string{"a-step", "z-step"}, ee.Details["affected_steps"])
	assert.Equal(t, available, ee.Details["available_capabilities"])
}

func TestCheck_NoRequirements(t *testing.T) {
	assert.NoError(t, Check([]schema.PlanStep{{Name: "free"}}, nil))
}
