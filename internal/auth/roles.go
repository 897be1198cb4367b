// SPDX-License-Identifier: MIT

// Package auth implements token issuance and role-scoped access for the
// VTN. Permissions are modeled as a set of roles, not a hierarchy: a
// caller may simultaneously be a VEN and a business admin, and every
// check is a union over the set.
package auth

import (
	"fmt"
	"strings"

	"github.com/gridlink/openadr3/internal/oadr"
)

type roleKind uint8

const (
	kindUserManager roleKind = iota
	kindVenManager
	kindAnyBusiness
	kindBusiness
	kindVen
)

// Role is one authorization grant: UserManager, VenManager, AnyBusiness,
// Business(id) or VEN(id).
type Role struct {
	kind roleKind
	id   oadr.Identifier
}

// UserManager administers users and credentials.
func UserManager() Role { return Role{kind: kindUserManager} }

// VenManager administers VENs and resources.
func VenManager() Role { return Role{kind: kindVenManager} }

// AnyBusiness grants business rights over every program.
func AnyBusiness() Role { return Role{kind: kindAnyBusiness} }

// Business grants business rights over programs owned by the given id.
func Business(id oadr.Identifier) Role { return Role{kind: kindBusiness, id: id} }

// VEN identifies the caller as the VEN with the given id.
func VEN(id oadr.Identifier) Role { return Role{kind: kindVen, id: id} }

// BusinessID returns the owned business id if this is a Business role.
func (r Role) BusinessID() (oadr.Identifier, bool) {
	return r.id, r.kind == kindBusiness
}

// VenID returns the VEN id if this is a VEN role.
func (r Role) VenID() (oadr.Identifier, bool) {
	return r.id, r.kind == kindVen
}

// IsUserManager reports whether this is the UserManager role.
func (r Role) IsUserManager() bool { return r.kind == kindUserManager }

// IsVenManager reports whether this is the VenManager role.
func (r Role) IsVenManager() bool { return r.kind == kindVenManager }

// IsAnyBusiness reports whether this is the AnyBusiness role.
func (r Role) IsAnyBusiness() bool { return r.kind == kindAnyBusiness }

// IsBusiness reports whether this grants any business rights.
func (r Role) IsBusiness() bool {
	return r.kind == kindAnyBusiness || r.kind == kindBusiness
}

// IsVen reports whether this is a VEN role.
func (r Role) IsVen() bool { return r.kind == kindVen }

// String encodes the role for JWT claims and the user store.
func (r Role) String() string {
	switch r.kind {
	case kindUserManager:
		return "user_manager"
	case kindVenManager:
		return "ven_manager"
	case kindAnyBusiness:
		return "any_business"
	case kindBusiness:
		return "business:" + r.id.String()
	default:
		return "ven:" + r.id.String()
	}
}

// ParseRole decodes the string form produced by String.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user_manager":
		return UserManager(), nil
	case "ven_manager":
		return VenManager(), nil
	case "any_business":
		return AnyBusiness(), nil
	}
	if rest, ok := strings.CutPrefix(s, "business:"); ok {
		id, err := oadr.ParseIdentifier(rest)
		if err != nil {
			return Role{}, fmt.Errorf("business role id: %w", err)
		}
		return Business(id), nil
	}
	if rest, ok := strings.CutPrefix(s, "ven:"); ok {
		id, err := oadr.ParseIdentifier(rest)
		if err != nil {
			return Role{}, fmt.Errorf("ven role id: %w", err)
		}
		return VEN(id), nil
	}
	return Role{}, fmt.Errorf("unknown role %q", s)
}

// RoleSet is the full set of roles a caller holds. Visibility is the
// union over all roles in the set.
type RoleSet []Role

// ParseRoles decodes a list of encoded roles.
func ParseRoles(encoded []string) (RoleSet, error) {
	roles := make(RoleSet, 0, len(encoded))
	for _, s := range encoded {
		r, err := ParseRole(s)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// Strings encodes the set for claims or storage.
func (rs RoleSet) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

// HasUserManager reports whether the set contains UserManager.
func (rs RoleSet) HasUserManager() bool {
	for _, r := range rs {
		if r.IsUserManager() {
			return true
		}
	}
	return false
}

// HasVenManager reports whether the set contains VenManager.
func (rs RoleSet) HasVenManager() bool {
	for _, r := range rs {
		if r.IsVenManager() {
			return true
		}
	}
	return false
}

// HasAnyBusiness reports whether the set contains AnyBusiness.
func (rs RoleSet) HasAnyBusiness() bool {
	for _, r := range rs {
		if r.IsAnyBusiness() {
			return true
		}
	}
	return false
}

// IsBusinessUser reports whether the set grants any business rights.
func (rs RoleSet) IsBusinessUser() bool {
	for _, r := range rs {
		if r.IsBusiness() {
			return true
		}
	}
	return false
}

// IsVenUser reports whether the set contains at least one VEN role.
func (rs RoleSet) IsVenUser() bool {
	return len(rs.VenIDs()) > 0
}

// BusinessIDs returns the ids of all Business roles in the set.
func (rs RoleSet) BusinessIDs() []oadr.Identifier {
	var out []oadr.Identifier
	for _, r := range rs {
		if id, ok := r.BusinessID(); ok {
			out = append(out, id)
		}
	}
	return out
}

// VenIDs returns the ids of all VEN roles in the set.
func (rs RoleSet) VenIDs() []oadr.Identifier {
	var out []oadr.Identifier
	for _, r := range rs {
		if id, ok := r.VenID(); ok {
			out = append(out, id)
		}
	}
	return out
}

// HasVen reports whether the set contains the VEN role for the given id.
func (rs RoleSet) HasVen(id oadr.Identifier) bool {
	for _, venID := range rs.VenIDs() {
		if venID == id {
			return true
		}
	}
	return false
}

// CanWriteBusiness reports whether the set may write programs owned by
// the given business id (nil means an unowned program).
func (rs RoleSet) CanWriteBusiness(businessID *oadr.Identifier) bool {
	if rs.HasAnyBusiness() {
		return true
	}
	if businessID == nil {
		// Unowned programs are writable only via AnyBusiness, handled above.
		return false
	}
	for _, id := range rs.BusinessIDs() {
		if id == *businessID {
			return true
		}
	}
	return false
}
