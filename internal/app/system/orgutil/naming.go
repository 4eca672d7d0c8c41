// internal/app/system/orgutil/naming.go
package orgutil

import (
	"strings"
)

// CollectionPrefix starts the name of every tenant collection.
const CollectionPrefix = "org_"

// CollectionName derives the tenant collection name for an organization.
// The derivation is deterministic; an organization's collection_name must
// always equal CollectionName(name).
func CollectionName(orgName string) string {
	return CollectionPrefix + strings.ReplaceAll(strings.ToLower(orgName), " ", "_")
}

// IsTenantCollection reports whether a collection name is in the tenant namespace.
func IsTenantCollection(name string) bool {
	return strings.HasPrefix(name, CollectionPrefix) && len(name) > len(CollectionPrefix)
}
