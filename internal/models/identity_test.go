package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	cases := map[string]Role{
		"client":   RoleUser,
		" Client ": RoleUser,
		"cleaner":  RoleProvider,
		"provider": RoleProvider,
		"SUPPORT":  RoleAdmin,
		"manager":  RoleAdmin,
	}
	for raw, want := range cases {
		got, ok := NormalizeRole(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := NormalizeRole("wizard")
	assert.False(t, ok)
}

func TestAgentRoles(t *testing.T) {
	roles := AgentRoles()
	assert.ElementsMatch(t, []string{"admin", "agent", "manager", "support"}, roles)
	for _, r := range roles {
		role, _ := NormalizeRole(r)
		assert.True(t, role.IsAgent())
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "authorization_error", ErrorKind(ErrForbidden))
	assert.Equal(t, "validation_error", ErrorKind(ErrInvalidID))
	assert.Equal(t, "not_found", ErrorKind(ErrNotFound))
	assert.Equal(t, "dependency_error", ErrorKind(ErrDependency))
	assert.Empty(t, ErrorKind(nil))
}
