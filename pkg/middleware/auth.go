package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/contextkeys"
	"github.com/platinummonkey/festival/pkg/observability"
)

// TokenVerifier validates a bearer token and returns its subject
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthFilter resolves the security context of every request. It never
// rejects a request itself; rejection is left to the PolicyGate.
type AuthFilter struct {
	tokens  TokenVerifier
	users   auth.CredentialStore
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthFilter creates a new request authorization filter. metrics may be nil.
func NewAuthFilter(tokens TokenVerifier, users auth.CredentialStore, logger *observability.Logger, metrics *observability.Metrics) *AuthFilter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &AuthFilter{
		tokens:  tokens,
		users:   users,
		logger:  logger,
		metrics: metrics,
	}
}

// Handler wraps an HTTP handler with the filter
func (f *AuthFilter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := f.resolve(r)

		ctx := auth.WithSecurityContext(r.Context(), sc)
		if user, ok := sc.(auth.Authenticated); ok {
			ctx = contextkeys.WithUserID(ctx, user.Username)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (f *AuthFilter) resolve(r *http.Request) auth.SecurityContext {
	token, ok := BearerToken(r)
	if !ok {
		return auth.Unauthenticated{}
	}

	subject, err := f.tokens.Verify(token)
	if err != nil {
		outcome := observability.OutcomeInvalid
		if errors.Is(err, auth.ErrTokenExpired) {
			outcome = observability.OutcomeExpired
		}
		f.metrics.RecordTokenVerify(outcome)
		f.logger.WithField("outcome", outcome).Debug("Bearer token rejected")
		return auth.Unauthenticated{}
	}

	user, err := f.lookup(r.Context(), subject)
	if err != nil {
		f.metrics.RecordTokenVerify(observability.OutcomeUnknown)
		if !errors.Is(err, auth.ErrNotFound) {
			f.logger.WithError(err).WithField("subject", subject).Warn("Failed to resolve token subject")
		}
		return auth.Unauthenticated{}
	}

	f.metrics.RecordTokenVerify(observability.OutcomeSuccess)
	return auth.Authenticated{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.EffectiveRoles(),
	}
}

func (f *AuthFilter) lookup(ctx context.Context, username string) (*auth.User, error) {
	user, err := f.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, auth.ErrNotFound
	}
	return user, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
