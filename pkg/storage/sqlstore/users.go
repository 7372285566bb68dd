package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/observability"
	"github.com/platinummonkey/festival/pkg/storage"
)

// UserStore persists accounts and serves as the credential store
type UserStore struct {
	db      DBTX
	metrics *observability.Metrics
	now     func() time.Time
}

// NewUserStore returns a UserStore bound to db. metrics may be nil.
func NewUserStore(db DBTX, metrics *observability.Metrics) *UserStore {
	return &UserStore{db: db, metrics: metrics, now: time.Now}
}

const userColumns = `id, username, email, password_hash, roles, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u     auth.User
		roles string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &roles, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Roles = auth.ParseRoles(roles)
	return &u, nil
}

// FindByUsername looks up a user by exact username
func (s *UserStore) FindByUsername(ctx context.Context, username string) (user *auth.User, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("user_find", start, ignoreNotFound(err)) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err = scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		err = mapError(err)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("user %q: %w: %w", username, auth.ErrNotFound, storage.ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

// ExistsByUsername reports whether username is taken
func (s *UserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username)
}

// ExistsByEmail reports whether email is taken
func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (s *UserStore) exists(ctx context.Context, query, arg string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// Create inserts user, assigning ID and CreatedAt. A duplicate username or
// email yields storage.ErrConflict.
func (s *UserStore) Create(ctx context.Context, user *auth.User) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("user_create", start, err) }()

	if len(user.Roles) == 0 {
		user.Roles = auth.Roles{auth.DefaultRole}
	}
	user.CreatedAt = s.now().UTC()

	query := `
		INSERT INTO users (username, email, password_hash, roles, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Roles.Join(),
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// List returns every user ordered by id
func (s *UserStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]*auth.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
