package auth

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", RoleUser},
		{"   ", RoleUser},
		{"artist", RoleArtist},
		{"ARTIST", RoleArtist},
		{"ROLE_ARTIST", RoleArtist},
		{"role_organizer", RoleOrganizer},
		{" staff ", RoleStaff},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRole(tt.in))
		})
	}
}

func TestRoles(t *testing.T) {
	roles := NewRoles(RoleStaff, RoleArtist, RoleStaff, " ", RoleUser)
	assert.Equal(t, Roles{RoleArtist, RoleStaff, RoleUser}, roles)
	assert.Contains(t, roles, RoleArtist)
	assert.NotContains(t, roles, RoleAdmin)

	joined := roles.Join()
	assert.Equal(t, "ROLE_ARTIST,ROLE_STAFF,ROLE_USER", joined)
	assert.Equal(t, roles, ParseRoles(joined))
	assert.Nil(t, ParseRoles(""))
}

func TestUser_EffectiveRoles(t *testing.T) {
	var nilUser *User
	assert.Equal(t, Roles{DefaultRole}, nilUser.EffectiveRoles())
	assert.Equal(t, Roles{DefaultRole}, (&User{}).EffectiveRoles())
	assert.Equal(t, Roles{RoleAdmin}, (&User{Roles: Roles{RoleAdmin}}).EffectiveRoles())
}

func TestUser_JSONHidesPasswordHash(t *testing.T) {
	data, err := json.Marshal(&User{ID: 1, Username: "alice", PasswordHash: "$2a$10$secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "password")
}

func TestSecurityContext(t *testing.T) {
	t.Run("defaults to unauthenticated", func(t *testing.T) {
		sc := SecurityContextFrom(context.Background())
		assert.IsType(t, Unauthenticated{}, sc)
		assert.False(t, sc.IsAuthenticated())

		_, ok := CurrentUser(context.Background())
		assert.False(t, ok)
	})

	t.Run("authenticated round trip", func(t *testing.T) {
		ctx := WithSecurityContext(context.Background(), Authenticated{
			UserID:   9,
			Username: "alice",
			Roles:    Roles{RoleArtist},
		})

		sc := SecurityContextFrom(ctx)
		assert.True(t, sc.IsAuthenticated())

		user, ok := CurrentUser(ctx)
		require.True(t, ok)
		assert.Equal(t, "alice", user.Username)
		assert.Contains(t, user.Roles, RoleArtist)
	})

	t.Run("explicit unauthenticated", func(t *testing.T) {
		ctx := WithSecurityContext(context.Background(), Unauthenticated{})
		_, ok := CurrentUser(ctx)
		assert.False(t, ok)
	})
}
