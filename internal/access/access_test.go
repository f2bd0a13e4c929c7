package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skyconnectsl/travelcore-router/internal/types"
)

func TestCheck_TravelerDeniedAnalytics(t *testing.T) {
	d := Check(types.IntentAnalytics, types.RoleTraveler, "u1", "")
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenialRoleForbidden, d.Reason)
}

func TestCheck_PartnerScopeMatch(t *testing.T) {
	d := Check(types.IntentAnalytics, types.RolePartner, "p42", "p42")
	assert.True(t, d.Allowed)
	assert.Equal(t, "p42", d.ScopePartnerID)
}

func TestCheck_PartnerScopeMismatch(t *testing.T) {
	d := Check(types.IntentAnalytics, types.RolePartner, "p42", "p99")
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenialScopeMismatch, d.Reason)
}

func TestCheck_PartnerScopeMissing(t *testing.T) {
	d := Check(types.IntentRevenue, types.RolePartner, "p42", "")
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenialScopeMismatch, d.Reason)
}

func TestCheck_AdminAllowedNoScope(t *testing.T) {
	d := Check(types.IntentModeration, types.RoleAdmin, "adm", "")
	assert.True(t, d.Allowed)
	assert.Empty(t, d.ScopePartnerID)
}

func TestCheck_SavedItemsPartnerDenied(t *testing.T) {
	d := Check(types.IntentSavedItems, types.RolePartner, "p1", "")
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenialRoleForbidden, d.Reason)
}

func TestCheck_AllIntentsCoveredForAllRoles(t *testing.T) {
	for _, intent := range types.AllIntents {
		for _, role := range []types.Role{types.RoleTraveler, types.RolePartner, types.RoleAdmin} {
			assert.NotPanics(t, func() {
				Check(intent, role, "u", "")
			})
		}
	}
}
