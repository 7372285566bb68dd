package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memoryStore is an in-memory CredentialStore for tests
type memoryStore struct {
	mu    sync.Mutex
	users map[string]*User
	err   error
	calls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]*User)}
}

func (s *memoryStore) add(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

func (s *memoryStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *memoryStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	u, err := s.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return u != nil, err
}

func hashFor(t *testing.T, hasher PasswordHasher, password string) string {
	t.Helper()
	h, err := hasher.Hash(password)
	require.NoError(t, err)
	return h
}

func TestAuthenticator_Authenticate(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	store := newMemoryStore()
	store.add(&User{ID: 1, Username: "alice", PasswordHash: hashFor(t, hasher, "correct horse"), Roles: Roles{RoleArtist}})
	store.add(&User{ID: 2, Username: "bob", PasswordHash: hashFor(t, hasher, "hunter2")})

	authn := NewAuthenticator(store, hasher)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		id, err := authn.Authenticate(ctx, "alice", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, int64(1), id.UserID)
		assert.Equal(t, "alice", id.Username)
		assert.Equal(t, Roles{RoleArtist}, id.Roles)
	})

	t.Run("default role when none recorded", func(t *testing.T) {
		id, err := authn.Authenticate(ctx, "bob", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, Roles{DefaultRole}, id.Roles)
	})

	t.Run("mutated passwords fail", func(t *testing.T) {
		for _, pw := range []string{"correct horsE", "correct horse ", "", "Correct horse", "correct"} {
			_, err := authn.Authenticate(ctx, "alice", pw)
			assert.ErrorIs(t, err, ErrInvalidCredentials, pw)
		}
	})

	t.Run("unknown user collapses to invalid credentials", func(t *testing.T) {
		_, err := authn.Authenticate(ctx, "mallory", "anything")
		assert.Equal(t, ErrInvalidCredentials, err)
	})

	t.Run("usernames are case-sensitive", func(t *testing.T) {
		_, err := authn.Authenticate(ctx, "Alice", "correct horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthenticator_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection reset")

	authn := NewAuthenticator(store, NewBcryptHasher(bcrypt.MinCost))
	_, err := authn.Authenticate(context.Background(), "alice", "pw")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAuthenticator_UnknownUserStillCompares(t *testing.T) {
	hasher := &countingHasher{PasswordHasher: NewBcryptHasher(bcrypt.MinCost)}
	authn := NewAuthenticator(newMemoryStore(), hasher)

	_, err := authn.Authenticate(context.Background(), "ghost", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, hasher.compares)
}

type countingHasher struct {
	PasswordHasher
	compares int
}

func (c *countingHasher) Compare(hash, password string) error {
	c.compares++
	return c.PasswordHasher.Compare(hash, password)
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, hasher.Compare(hash, "s3cret"))
	assert.ErrorIs(t, hasher.Compare(hash, "S3cret"), ErrInvalidCredentials)
	assert.ErrorIs(t, hasher.Compare("not-a-bcrypt-hash", "s3cret"), ErrInvalidCredentials)

	other, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "hashes must be salted")
}

func TestNewBcryptHasher_CostBounds(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewBcryptHasher(12).cost)
}
