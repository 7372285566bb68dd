package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/observability"
)

// TokenIssuer signs credential tokens
type TokenIssuer interface {
	Issue(subject string) (string, error)
	Validity() time.Duration
}

// AuthHandlers handles login, registration and the current-user endpoint
type AuthHandlers struct {
	users         UserStore
	authenticator *auth.Authenticator
	registrar     registrar
	tokens        TokenIssuer
	audit         *auth.AuditLogger
	metrics       *observability.Metrics
	logger        *observability.Logger
}

// NewAuthHandlers creates a new auth handlers instance. metrics may be nil.
func NewAuthHandlers(users UserStore, tokens TokenIssuer, hasher auth.PasswordHasher, audit *auth.AuditLogger, metrics *observability.Metrics, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:         users,
		authenticator: auth.NewAuthenticator(users, hasher),
		registrar:     registrar{users: users, hasher: hasher},
		tokens:        tokens,
		audit:         audit,
		metrics:       metrics,
		logger:        logger,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", h.register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/me", h.me).Methods(http.MethodGet)
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// TokenResponse carries an issued token. Token duplicates AccessToken for
// older web clients.
type TokenResponse struct {
	AccessToken string     `json:"accessToken"`
	Token       string     `json:"token"`
	ExpiresIn   int64      `json:"expiresIn"` // seconds
	Roles       auth.Roles `json:"roles"`
}

// MeResponse describes the authenticated user
type MeResponse struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Roles    auth.Roles `json:"roles"`
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	identity, err := h.authenticator.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.RecordAuth("login", observability.OutcomeFailure)
			h.audit.LogFromRequest(r, auth.ActionLogin, req.Username, auth.StatusFailure, nil)
			httputil.WriteUnauthorized(w, "Invalid credentials")
			return
		}
		h.metrics.RecordAuth("login", observability.OutcomeUnknown)
		requestLogger(r, h.logger).WithError(err).Error("Login failed")
		httputil.WriteInternalError(w, "")
		return
	}

	token, err := h.tokens.Issue(identity.Username)
	if err != nil {
		requestLogger(r, h.logger).WithError(err).Error("Failed to issue token")
		httputil.WriteInternalError(w, "")
		return
	}

	h.metrics.RecordAuth("login", observability.OutcomeSuccess)
	h.audit.LogFromRequest(r, auth.ActionLogin, identity.Username, auth.StatusSuccess, nil)
	httputil.WriteSuccess(w, h.tokenResponse(token, identity.Roles))
}

// register handles POST /api/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if msg := httputil.FirstInvalid(req.Validators()...); msg != "" {
		h.metrics.RecordAuth("register", observability.OutcomeInvalid)
		httputil.WriteValidationError(w, msg)
		return
	}

	user, err := h.registrar.register(r.Context(), req)
	if err != nil {
		if isDuplicateAccount(err) {
			h.rejectDuplicate(w, r, req.Username, err.Error())
			return
		}
		requestLogger(r, h.logger).WithError(err).Error("Registration failed")
		httputil.WriteInternalError(w, "")
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		requestLogger(r, h.logger).WithError(err).Error("Failed to issue token")
		httputil.WriteInternalError(w, "")
		return
	}

	h.metrics.RecordAuth("register", observability.OutcomeSuccess)
	h.audit.LogFromRequest(r, auth.ActionRegister, user.Username, auth.StatusSuccess, nil)
	httputil.WriteCreated(w, h.tokenResponse(token, user.EffectiveRoles()))
}

func (h *AuthHandlers) tokenResponse(token string, roles auth.Roles) TokenResponse {
	return TokenResponse{
		AccessToken: token,
		Token:       token,
		ExpiresIn:   int64(h.tokens.Validity().Seconds()),
		Roles:       roles,
	}
}

func (h *AuthHandlers) rejectDuplicate(w http.ResponseWriter, r *http.Request, username, message string) {
	h.metrics.RecordAuth("register", observability.OutcomeConflict)
	h.audit.LogFromRequest(r, auth.ActionRegister, username, auth.StatusFailure, nil)
	httputil.WriteConflict(w, message)
}

// me handles GET /api/auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	current, ok := auth.CurrentUser(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}

	user, err := h.users.FindByUsername(r.Context(), current.Username)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			// the account vanished after the token was resolved
			httputil.WriteUnauthorized(w, "Unauthorized")
			return
		}
		requestLogger(r, h.logger).WithError(err).Error("Failed to load current user")
		httputil.WriteInternalError(w, "")
		return
	}

	httputil.WriteSuccess(w, MeResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Roles:    user.EffectiveRoles(),
	})
}
