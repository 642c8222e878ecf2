package rbac

import "sort"

// Permissions gating the managed collections. The strings are opaque to the
// model itself; no wildcard or hierarchy interpretation is applied.
const (
	PermAccountsRead   = "accounts:read"
	PermAccountsWrite  = "accounts:write"
	PermAccountsDelete = "accounts:delete"

	PermRolesRead   = "roles:read"
	PermRolesWrite  = "roles:write"
	PermRolesDelete = "roles:delete"
)

// AllPermissions lists every permission the collections are gated by.
func AllPermissions() []string {
	return []string{
		PermAccountsRead,
		PermAccountsWrite,
		PermAccountsDelete,
		PermRolesRead,
		PermRolesWrite,
		PermRolesDelete,
	}
}

// PermissionSet is an unordered set of permission strings. It exists so that
// loose strings stop at the storage and wire edges.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set.Add(p)
	}
	return set
}

// Add inserts a permission into the set.
func (s PermissionSet) Add(perm string) {
	s[perm] = struct{}{}
}

// Has tests set membership for an exact permission string.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Union merges other into a new set.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	merged := make(PermissionSet, len(s)+len(other))
	for p := range s {
		merged.Add(p)
	}
	for p := range other {
		merged.Add(p)
	}
	return merged
}

// Strings returns the set as a sorted slice for serialization.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
