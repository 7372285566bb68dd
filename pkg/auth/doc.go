// Package auth provides stateless, token-based authentication for the festival API.
//
// # Overview
//
// The package holds the pieces of the authentication core that do not depend on
// HTTP: signed bearer tokens, password hashing, the credential check performed
// at login, and the per-request security context that middleware attaches to a
// request.
//
// # Key Components
//
// Token Service: HS256 tokens binding a username to an issue and expiry time
//
//	svc, err := auth.NewTokenService(auth.TokenConfig{
//		Secret:   []byte(cfg.Auth.JWTSecret),
//		Validity: 24 * time.Hour,
//		Issuer:   "festival",
//	})
//	token, err := svc.Issue("alice")
//	subject, err := svc.Verify(token) // ErrTokenExpired, ErrTokenInvalid
//
// Authentication Check: username/password verification against a CredentialStore
//
//	authn := auth.NewAuthenticator(users, auth.NewBcryptHasher(bcrypt.DefaultCost))
//	identity, err := authn.Authenticate(ctx, "alice", "secret")
//	if errors.Is(err, auth.ErrInvalidCredentials) {
//		// 401, never reveals which field was wrong
//	}
//
// Security Context: tagged variant attached to each request
//
//	switch sc := auth.SecurityContextFrom(ctx).(type) {
//	case auth.Authenticated:
//		log.Printf("user %s roles %v", sc.Username, sc.Roles)
//	case auth.Unauthenticated:
//		// anonymous request
//	}
//
// # Roles
//
// Roles are prefixed strings (ROLE_USER, ROLE_ARTIST, ...) treated as a set.
// An identity with no recorded roles is given DefaultRole.
//
// # Related Packages
//
//   - pkg/middleware: Request authorization filter and access policy
//   - pkg/storage/sqlstore: CredentialStore implementation
//   - pkg/api: Login, registration and "who am I" endpoints
package auth
