package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/storage"
)

var (
	errUsernameTaken = errors.New("Username already exists")
	errEmailTaken    = errors.New("Email already exists")
)

// registrar creates accounts for POST /api/auth/register and
// POST /api/users/register
type registrar struct {
	users  UserStore
	hasher auth.PasswordHasher
}

// Validators checks the request in the order errors are reported
func (req RegisterRequest) Validators() []httputil.Validator {
	return []httputil.Validator{
		httputil.Check(!httputil.IsBlank(req.Username) && !httputil.IsBlank(req.Password), "Username and password are required"),
	}
}

// register stores a new account for a validated request. It returns
// errUsernameTaken or errEmailTaken when the account would collide with an
// existing one.
func (r registrar) register(ctx context.Context, req RegisterRequest) (*auth.User, error) {
	exists, err := r.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, errUsernameTaken
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = req.Username + "@local"
	}
	taken, err := r.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, errEmailTaken
	}

	hash, err := r.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &auth.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: hash,
		Roles:        auth.NewRoles(auth.NormalizeRole(req.Role)),
	}
	if err := r.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// lost a race with a concurrent registration
			return nil, errUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func isDuplicateAccount(err error) bool {
	return errors.Is(err, errUsernameTaken) || errors.Is(err, errEmailTaken)
}
