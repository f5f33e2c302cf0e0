package capabilities

import (
	"sort"
	"strings"

	"github.com/idle-engine/idle/pkg/schema"
)

// Check runs the fail-fast capability gate: required is the union over every
// step (primary and OnFailure) of its canonical required set; anything not in
// available fails planning atomically with a deterministic, sorted report.
func Check(steps []schema.PlanStep, available []string) error {
	availableSet := make(map[string]struct{}, len(available))
	for _, capability := range available {
		availableSet[capability] = struct{}{}
	}

	missingSet := make(map[string]struct{})
	affectedSet := make(map[string]struct{})
	for _, step := range steps {
		for _, capability := range step.RequiresCapabilities {
			if _, ok := availableSet[capability]; !ok {
				missingSet[capability] = struct{}{}
				affectedSet[step.Name] = struct{}{}
			}
		}
	}
	if len(missingSet) == 0 {
		return nil
	}

	missing := make([]string, 0, len(missingSet))
	for capability := range missingSet {
		missing = append(missing, capability)
	}
	sort.Strings(missing)

	affected := make([]string, 0, len(affectedSet))
	for name := range affectedSet {
		affected = append(affected, name)
	}
	sort.Strings(affected)

	return schema.NewErrorf(schema.ErrCodeCapability,
		"missing capabilities: %s (required by steps: %s)",
		strings.Join(missing, ", "), strings.Join(affected, ", ")).
		WithDetails(map[string]any{
			"missing_capabilities":   missing,
			"affected_steps":         affected,
			"available_capabilities": available,
		})
}
