package auth

import (
	"context"
	"sort"
	"strings"
	"time"
)

// RolePrefix is prepended to every stored role name
const RolePrefix = "ROLE_"

// Well-known roles
const (
	RoleUser      = "ROLE_USER"
	RoleArtist    = "ROLE_ARTIST"
	RoleOrganizer = "ROLE_ORGANIZER"
	RoleStaff     = "ROLE_STAFF"
	RoleAdmin     = "ROLE_ADMIN"
)

// DefaultRole is assigned to identities without any recorded role
const DefaultRole = RoleUser

// User represents a registered account
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose hash
	Roles        Roles     `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EffectiveRoles returns the user's roles, falling back to DefaultRole
func (u *User) EffectiveRoles() Roles {
	if u == nil || len(u.Roles) == 0 {
		return Roles{DefaultRole}
	}
	return u.Roles
}

// Roles is a set of role names kept sorted and de-duplicated
type Roles []string

// NewRoles builds a normalized role set
func NewRoles(names ...string) Roles {
	seen := make(map[string]struct{}, len(names))
	out := make(Roles, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Join encodes the set for storage in a single text column
func (r Roles) Join() string {
	return strings.Join(r, ",")
}

// ParseRoles decodes a comma separated role column
func ParseRoles(s string) Roles {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NewRoles(strings.Split(s, ",")...)
}

// NormalizeRole turns a user supplied role ("artist", "ROLE_Artist", "")
// into its stored form. Blank input yields DefaultRole.
func NormalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	role = strings.TrimPrefix(role, RolePrefix)
	if role == "" {
		return DefaultRole
	}
	return RolePrefix + role
}

// Identity is the result of a successful credential check
type Identity struct {
	UserID   int64
	Username string
	Roles    Roles
}

// CredentialStore looks up identities by username. Usernames are
// case-sensitive and globally unique.
type CredentialStore interface {
	// FindByUsername returns ErrNotFound when no user matches
	FindByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}
