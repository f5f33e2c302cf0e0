// Package registry holds the two host-populated registries the engine
// dispatches through: step-type metadata (required capabilities) and named
// handlers. Workflow content is data; only these registries, populated by
// the trusted host process, may resolve to executable code.
package registry

import (
	"github.com/idle-engine/idle/pkg/schema"
)

// StepMetadata declares what a step type needs from providers.
type StepMetadata struct {
	RequiredCapabilities []string
	Description          string
}

// builtinMetadata is the default step-type catalog. Hosts override or extend
// it; they never shrink a type's capability set silently because overrides
// replace whole entries.
var builtinMetadata = map[string]StepMetadata{
	"identity.create": {
		RequiredCapabilities: []string{"IdLE.Identity.Create"},
		Description:          "Provision a directory identity",
	},
	"identity.update": {
		RequiredCapabilities: []string{"IdLE.Identity.Update"},
		Description:          "Apply attribute changes to an identity",
	},
	"identity.disable": {
		RequiredCapabilities: []string{"IdLE.Identity.Disable"},
		Description:          "Disable a directory identity",
	},
	"identity.enable": {
		RequiredCapabilities: []string{"IdLE.Identity.Enable"},
		Description:          "Re-enable a directory identity",
	},
	"group.addMemberships": {
		RequiredCapabilities: []string{"IdLE.Group.AddMemberships"},
		Description:          "Add group memberships",
	},
	"group.removeMemberships": {
		RequiredCapabilities: []string{"IdLE.Group.RemoveMemberships"},
		Description:          "Strip group memberships",
	},
	"mailbox.convertToShared": {
		RequiredCapabilities: []string{"IdLE.Mailbox.ConvertToShared"},
		Description:          "Convert a mailbox to shared",
	},
	"mailbox.setForwarding": {
		RequiredCapabilities: []string{"IdLE.Mailbox.SetForwarding"},
		Description:          "Configure mailbox forwarding",
	},
	"directorySync.delta": {
		RequiredCapabilities: []string{"IdLE.DirectorySync.Cycle"},
		Description:          "Trigger a delta directory sync cycle",
	},
	"notify.email": {
		RequiredCapabilities: []string{"IdLE.Notify.Email"},
		Description:          "Send a notification email",
	},
}

// MetadataRegistry maps step types to their capability metadata. It is a
// read-only snapshot once constructed.
type MetadataRegistry struct {
	entries map[string]StepMetadata
}

// NewMetadataRegistry merges host overrides over the built-in catalog and
// validates every declared capability (legacy names are accepted here and
// canonicalized at planning time).
func NewMetadataRegistry(overrides map[string]StepMetadata) (*MetadataRegistry, error) {
	entries := make(map[string]StepMetadata, len(builtinMetadata)+len(overrides))
	for stepType, md := range builtinMetadata {
		entries[stepType] = md
	}
	for stepType, md := range overrides {
		if stepType == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "step type override with empty name")
		}
		entries[stepType] = md
	}
	return &MetadataRegistry{entries: entries}, nil
}

// Resolve returns the metadata for a step type. A type with no entry is a
// hard planning error: required capabilities never default to "none".
func (r *MetadataRegistry) Resolve(stepType string) (StepMetadata, error) {
	md, ok := r.entries[stepType]
	if !ok {
		return StepMetadata{}, schema.NewErrorf(schema.ErrCodeValidation,
			"no step metadata registered for type %q", stepType)
	}
	return md, nil
}

// Has reports whether a step type is known.
func (r *MetadataRegistry) Has(stepType string) bool {
	_, ok := r.entries[stepType]
	return ok
}
