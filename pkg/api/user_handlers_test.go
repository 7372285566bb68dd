package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")
	env.register(t, "bob", "pw")

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/users", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "$2a$", "hashes never leave the server")

		var users []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0]["username"])
		assert.NotContains(t, users[0], "passwordHash")
	})

	t.Run("get", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/users/bob", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"email":"bob@local"`)

		rec = env.do(t, http.MethodGet, "/api/users/carol", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", decodeError(t, rec))
	})

	t.Run("exists", func(t *testing.T) {
		tests := []struct {
			path string
			want string
		}{
			{path: "/api/users/exists/username/alice", want: "true"},
			{path: "/api/users/exists/username/carol", want: "false"},
			{path: "/api/users/exists/email/bob@local", want: "true"},
			{path: "/api/users/exists/email/carol@local", want: "false"},
		}
		for _, tt := range tests {
			rec := env.do(t, http.MethodGet, tt.path, nil, "")
			require.Equal(t, http.StatusOK, rec.Code, tt.path)
			assert.JSONEq(t, tt.want, rec.Body.String(), tt.path)
		}
	})

	t.Run("register", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/users/register", RegisterRequest{
			Username: "carol",
			Password: "pw",
			Email:    "carol@example.com",
			Role:     "organizer",
		}, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "accessToken", "account registration issues no token")
		assert.NotContains(t, rec.Body.String(), "$2a$")

		var created map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "carol", created["username"])
		assert.Equal(t, "carol@example.com", created["email"])
		assert.Equal(t, []interface{}{"ROLE_ORGANIZER"}, created["roles"])
		assert.NotZero(t, created["id"])

		stored, err := env.users.FindByUsername(context.Background(), "carol")
		require.NoError(t, err)
		require.NoError(t, env.hasher.Compare(stored.PasswordHash, "pw"))

		rec = env.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "carol", Password: "pw"}, "")
		assert.Equal(t, http.StatusOK, rec.Code, "the new account can log in")
	})

	t.Run("register rejects", func(t *testing.T) {
		tests := []struct {
			name     string
			body     interface{}
			wantCode int
			wantErr  string
		}{
			{name: "duplicate username", body: RegisterRequest{Username: "alice", Password: "x"}, wantCode: http.StatusConflict, wantErr: "Username already exists"},
			{name: "duplicate email", body: RegisterRequest{Username: "dave", Password: "x", Email: "bob@local"}, wantCode: http.StatusConflict, wantErr: "Email already exists"},
			{name: "blank password", body: RegisterRequest{Username: "dave", Password: " "}, wantCode: http.StatusBadRequest, wantErr: "Username and password are required"},
			{name: "malformed body", body: "{", wantCode: http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				before := env.users.len()
				rec := env.do(t, http.MethodPost, "/api/users/register", tt.body, "")
				assert.Equal(t, tt.wantCode, rec.Code)
				if tt.wantErr != "" {
					assert.Equal(t, tt.wantErr, decodeError(t, rec))
				}
				assert.Equal(t, before, env.users.len())
			})
		}
	})

	t.Run("store failure", func(t *testing.T) {
		env.users.err = errStoreDown
		defer func() { env.users.err = nil }()

		for _, path := range []string{"/api/users", "/api/users/alice", "/api/users/exists/username/alice", "/api/users/exists/email/a@b"} {
			rec := env.do(t, http.MethodGet, path, nil, "")
			assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		}
	})
}
