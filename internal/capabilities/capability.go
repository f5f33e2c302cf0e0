// Package capabilities normalizes capability identifiers, aggregates what
// providers advertise, and gates plans whose required capabilities are unmet.
package capabilities

import (
	"regexp"

	"github.com/idle-engine/idle/pkg/schema"
)

// identifierPattern is the canonical dot-segmented capability form,
// e.g. "IdLE.Identity.Disable".
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(\.[A-Za-z0-9]+)+$`)

// legacyCapabilities maps deprecated identifiers to their canonical
// counterparts. Translation is idempotent: canonical names are never keys.
var legacyCapabilities = map[string]string{
	"AD.CreateUser":      "IdLE.Identity.Create",
	"AD.UpdateUser":      "IdLE.Identity.Update",
	"AD.DisableUser":     "IdLE.Identity.Disable",
	"AD.EnableUser":      "IdLE.Identity.Enable",
	"AD.RemoveGroups":    "IdLE.Group.RemoveMemberships",
	"AD.AddGroups":       "IdLE.Group.AddMemberships",
	"Mail.ConvertShared": "IdLE.Mailbox.ConvertToShared",
	"Mail.SetForwarding": "IdLE.Mailbox.SetForwarding",
	"DirSync.RunDelta":   "IdLE.DirectorySync.Cycle",
	"Notify.SendMail":    "IdLE.Notify.Email",
}

// Validate checks an identifier against the dot-segment pattern.
func Validate(capability string) error {
	if !identifierPattern.MatchString(capability) {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"invalid capability identifier %q", capability)
	}
	return nil
}

// Normalize translates a legacy identifier to its canonical form. The second
// return reports whether a translation happened. Normalizing a canonical name
// is a no-op, so the operation is idempotent.
func Normalize(capability string) (string, bool) {
	if canonical, ok := legacyCapabilities[capability]; ok {
		return canonical, true
	}
	return capability, false
}
