// Package normalize canonicalizes user-supplied identifiers before they are
// stored or looked up.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email trims surrounding whitespace and lower-cases the address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// OrgName trims and folds an organization name to its stored form.
// Organization names are compared case-insensitively, so the folded form is
// the only form ever persisted.
func OrgName(s string) string {
	return text.Fold(strings.TrimSpace(s))
}
