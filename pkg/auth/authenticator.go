package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// dummyPassword is hashed once and compared against when a username is
// unknown, so both failure paths spend the same bcrypt work.
const dummyPassword = "festival-dummy-password"

// Authenticator verifies username/password pairs against a CredentialStore
type Authenticator struct {
	store  CredentialStore
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(store CredentialStore, hasher PasswordHasher) *Authenticator {
	return &Authenticator{
		store:  store,
		hasher: hasher,
	}
}

// Authenticate returns the identity for username when password matches its
// stored hash. Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	user, err := a.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.burnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	if err := a.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.EffectiveRoles(),
	}, nil
}

func (a *Authenticator) burnCompare(password string) {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = a.hasher.Hash(dummyPassword)
	})
	if a.dummyHash != "" {
		_ = a.hasher.Compare(a.dummyHash, password)
	}
}
