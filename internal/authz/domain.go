// Package authz implements permission resolution and the authorization guard.
//
// Permissions are strings of the form "resource:action". A granted
// "resource:*" satisfies every action on that resource; the expansion happens
// at membership-check time against the required permission's resource prefix,
// so the index never needs to store expanded forms.
package authz

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated indicates no usable principal was presented.
	ErrUnauthenticated = errors.New("authz: unauthenticated")
	// ErrForbidden indicates the principal lacks every required permission.
	ErrForbidden = errors.New("authz: forbidden")
	// ErrIndexUnavailable indicates the permission index could not be
	// consulted. The guard fails closed on it.
	ErrIndexUnavailable = errors.New("authz: permission index unavailable")
)

// Normalize canonicalises a permission name for comparison.
func Normalize(perm string) string {
	return strings.ToLower(strings.TrimSpace(perm))
}

// NormalizeAll canonicalises and deduplicates a permission list, dropping
// empty entries. Order of first appearance is preserved so error messages
// match the declaration site.
func NormalizeAll(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = Normalize(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// wildcardOf returns the "resource:*" form of a permission, or "" when the
// permission has no resource prefix.
func wildcardOf(perm string) string {
	idx := strings.IndexByte(perm, ':')
	if idx <= 0 {
		return ""
	}
	return perm[:idx] + ":*"
}

// PermissionSet is an immutable membership view over granted permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a normalized set from granted permission names.
// An empty grant list yields a valid empty set.
func NewPermissionSet(perms []string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		p = Normalize(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the required permission is satisfied, either by the
// literal grant or by the wildcard grant on its resource.
func (s PermissionSet) Has(perm string) bool {
	perm = Normalize(perm)
	if _, ok := s[perm]; ok {
		return true
	}
	if wc := wildcardOf(perm); wc != "" {
		if _, ok := s[wc]; ok {
			return true
		}
	}
	return false
}

// List returns the granted names in sorted order.
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
