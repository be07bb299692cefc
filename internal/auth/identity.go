// Package auth describes the caller identity the services trust. Tokens are
// issued and verified by Keycloak; this package only maps what they assert.
package auth

import "slices"

// Role is the caller's application-wide role as asserted by the identity provider.
type Role string

const (
	RoleMember         Role = "member"
	RoleTeamLead       Role = "team_lead"
	RoleProjectManager Role = "project_manager"
	RoleProjectAdmin   Role = "project_admin"
	RoleSuperAdmin     Role = "super_admin"
)

// rolePrecedence orders roles from most to least privileged.
var rolePrecedence = []Role{RoleSuperAdmin, RoleProjectAdmin, RoleProjectManager, RoleTeamLead}

// ManagerTier lists the roles allowed to approve or reject timesheets.
var ManagerTier = []Role{RoleProjectManager, RoleProjectAdmin, RoleSuperAdmin}

// Identity is the resolved (user, role) pair every operation runs as.
type Identity struct {
	UserID string
	Role   Role
}

// IsManagerTier reports whether the identity may act on other users' timesheets.
func (i Identity) IsManagerTier() bool {
	return slices.Contains(ManagerTier, i.Role)
}

func (i Identity) IsSuperAdmin() bool {
	return i.Role == RoleSuperAdmin
}

// ParseRole maps a claim value to a known Role, defaulting to member.
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleTeamLead, RoleProjectManager, RoleProjectAdmin, RoleSuperAdmin:
		return r
	default:
		return RoleMember
	}
}

// RoleFromRealm picks the most privileged application role among the realm
// roles of a token. Unrelated realm roles such as offline_access are ignored.
func RoleFromRealm(realmRoles []string) Role {
	for _, r := range rolePrecedence {
		if slices.Contains(realmRoles, string(r)) {
			return r
		}
	}
	return RoleMember
}
