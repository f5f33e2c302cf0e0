package capabilities

import (
	"sort"

	"github.com/idle-engine/idle/pkg/schema"
)

// Aggregate collects the available-capability set across all configured
// providers: each advertised identifier is validated, legacy names are
// translated, and the union is returned sorted and de-duplicated.
// Translations performed are reported so the planner can surface them.
func Aggregate(providers map[string]schema.Provider) (available []string, normalized []string, err error) {
	seen := make(map[string]struct{})
	for name, provider := range providers {
		if provider == nil {
			return nil, nil, schema.NewErrorf(schema.ErrCodeValidation, "provider %q is nil", name)
		}
		for _, capability := range provider.GetCapabilities() {
			canonical, translated := Normalize(capability)
			if vErr := Validate(canonical); vErr != nil {
				return nil, nil, schema.NewErrorf(schema.ErrCodeValidation,
					"provider %q advertises invalid capability %q", name, capability)
			}
			if translated {
				normalized = append(normalized, capability+" -> "+canonical)
			}
			seen[canonical] = struct{}{}
		}
	}

	available = make([]string, 0, len(seen))
	for capability := range seen {
		available = append(available, capability)
	}
	sort.Strings(available)
	sort.Strings(normalized)
	return available, normalized, nil
}

// SortedSet canonicalizes, validates, sorts, and de-duplicates a capability
// list. Used for each step's required set.
func SortedSet(caps []string) ([]string, []string, error) {
	seen := make(map[string]struct{}, len(caps))
	var normalized []string
	for _, capability := range caps {
		canonical, translated := Normalize(capability)
		if err := Validate(canonical); err != nil {
			return nil, nil, err
		}
		if translated {
			normalized = append(normalized, capability+" -> "+canonical)
		}
		seen[canonical] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for capability := range seen {
		out = append(out, capability)
	}
	sort.Strings(out)
	sort.Strings(normalized)
	return out, normalized, nil
}
