// Package access implements the Role/Scope Validator (C4): a pure function
// of (intent, role, user_id, partner_id) with no I/O and no state.
package access

import "github.com/skyconnectsl/travelcore-router/internal/types"

type permission int

const (
	deny permission = iota
	allow
	allowScopedPartner
)

// table is the authoritative permission matrix from spec.md §4.4. New
// intents require both a row here and a route decision in corerouter;
// startup validation enforces the two tables agree in coverage.
var table = map[types.Intent]map[types.Role]permission{
	types.IntentRecommendation: {
		types.RoleTraveler: allow,
		types.RolePartner:  allow,
		types.RoleAdmin:    allow,
	},
	types.IntentSavedItems: {
		types.RoleTraveler: allow,
		types.RolePartner:  deny,
		types.RoleAdmin:    deny,
	},
	types.IntentAnalytics: {
		types.RoleTraveler: deny,
		types.RolePartner:  allowScopedPartner,
		types.RoleAdmin:    allow,
	},
	types.IntentRevenue: {
		types.RoleTraveler: deny,
		types.RolePartner:  allowScopedPartner,
		types.RoleAdmin:    allow,
	},
	types.IntentModeration: {
		types.RoleTraveler: deny,
		types.RolePartner:  deny,
		types.RoleAdmin:    allow,
	},
	types.IntentPolicy: {
		types.RoleTraveler: allow,
		types.RolePartner:  allow,
		types.RoleAdmin:    allow,
	},
	types.IntentNavigation: {
		types.RoleTraveler: allow,
		types.RolePartner:  allow,
		types.RoleAdmin:    allow,
	},
	types.IntentTroubleshooting: {
		types.RoleTraveler: allow,
		types.RolePartner:  allow,
		types.RoleAdmin:    allow,
	},
}

// Intents is the set of intents the permission table covers, used by the
// corerouter startup check that the permission table and the route table
// agree in coverage.
func Intents() []types.Intent {
	out := make([]types.Intent, 0, len(table))
	for intent := range table {
		out = append(out, intent)
	}
	return out
}

// Check evaluates one (intent, role, user_id, partner_id) tuple.
func Check(intent types.Intent, role types.Role, userID, partnerID string) types.AccessDecision {
	roles, ok := table[intent]
	if !ok {
		return types.AccessDecision{Allowed: false, Reason: types.DenialRoleForbidden}
	}

	perm, ok := roles[role]
	if !ok {
		perm = deny
	}

	switch perm {
	case deny:
		return types.AccessDecision{Allowed: false, Reason: types.DenialRoleForbidden}

	case allow:
		if role == types.RolePartner {
			return types.AccessDecision{Allowed: true, ScopeUserID: userID, ScopePartnerID: partnerID}
		}
		return types.AccessDecision{Allowed: true, ScopeUserID: userID}

	case allowScopedPartner:
		if partnerID == "" || partnerID != userID {
			return types.AccessDecision{Allowed: false, Reason: types.DenialScopeMismatch}
		}
		return types.AccessDecision{Allowed: true, ScopeUserID: userID, ScopePartnerID: partnerID}

	default:
		return types.AccessDecision{Allowed: false, Reason: types.DenialRoleForbidden}
	}
}
