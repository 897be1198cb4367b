// SPDX-License-Identifier: MIT

package auth

import (
	"testing"
	"time"

	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestRoleCodec(t *testing.T) {
	roles := RoleSet{
		UserManager(),
		VenManager(),
		AnyBusiness(),
		Business("business-1"),
		VEN("ven-1"),
	}
	decoded, err := ParseRoles(roles.Strings())
	require.NoError(t, err)
	assert.Equal(t, roles, decoded)

	_, err = ParseRole("superadmin")
	assert.Error(t, err)
	_, err = ParseRole("ven:")
	assert.Error(t, err)
	_, err = ParseRole("business:not valid")
	assert.Error(t, err)
}

func TestRoleSetChecks(t *testing.T) {
	multiHat := RoleSet{VEN("ven-2"), Business("business-1")}
	assert.True(t, multiHat.IsBusinessUser())
	assert.True(t, multiHat.IsVenUser())
	assert.True(t, multiHat.HasVen("ven-2"))
	assert.False(t, multiHat.HasVen("ven-1"))
	assert.False(t, multiHat.HasAnyBusiness())
	assert.False(t, multiHat.HasUserManager())

	assert.Equal(t, []oadr.Identifier{"business-1"}, multiHat.BusinessIDs())
	assert.Equal(t, []oadr.Identifier{"ven-2"}, multiHat.VenIDs())
}

func TestCanWriteBusiness(t *testing.T) {
	owner := oadr.Identifier("business-1")

	assert.True(t, RoleSet{Business("business-1")}.CanWriteBusiness(&owner))
	assert.False(t, RoleSet{Business("business-2")}.CanWriteBusiness(&owner))
	assert.True(t, RoleSet{AnyBusiness()}.CanWriteBusiness(&owner))
	assert.True(t, RoleSet{AnyBusiness()}.CanWriteBusiness(nil))
	// Unowned programs are only writable through AnyBusiness.
	assert.False(t, RoleSet{Business("business-1")}.CanWriteBusiness(nil))
}

func TestIssueAndVerify(t *testing.T) {
	signer := NewSigner(testSecret, 30*24*time.Hour)
	roles := RoleSet{Business("business-1"), VEN("ven-1")}

	token, err := signer.Issue("client-1", roles, time.Now())
	require.NoError(t, err)

	id, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", id.ClientID)
	assert.Equal(t, roles, id.Roles)
}

func TestVerifyRejects(t *testing.T) {
	signer := NewSigner(testSecret, time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewSigner("ffffffffffffffffffffffffffffffff", time.Hour)
		token, err := other.Issue("client-1", RoleSet{UserManager()}, time.Now())
		require.NoError(t, err)
		_, err = signer.Verify(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := signer.Issue("client-1", RoleSet{UserManager()}, time.Now().Add(-2*time.Hour))
		require.NoError(t, err)
		_, err = signer.Verify(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.Verify("not.a.jwt")
		assert.Error(t, err)
	})
}
