package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/observability"
)

// UserHandlers handles account lookup endpoints and the account-only
// registration endpoint
type UserHandlers struct {
	users     UserStore
	registrar registrar
	audit     *auth.AuditLogger
	logger    *observability.Logger
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(users UserStore, hasher auth.PasswordHasher, audit *auth.AuditLogger, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{
		users:     users,
		registrar: registrar{users: users, hasher: hasher},
		audit:     audit,
		logger:    logger,
	}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/users/exists/username/{username}", h.usernameExists).Methods(http.MethodGet)
	router.HandleFunc("/api/users/exists/email/{email}", h.emailExists).Methods(http.MethodGet)
	router.HandleFunc("/api/users/register", h.registerUser).Methods(http.MethodPost)
	router.HandleFunc("/api/users", h.listUsers).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{username}", h.getUser).Methods(http.MethodGet)
}

// registerUser handles POST /api/users/register. Unlike
// /api/auth/register it issues no token and answers with the stored account.
func (h *UserHandlers) registerUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, req.Validators()...) {
		return
	}

	user, err := h.registrar.register(r.Context(), req)
	if err != nil {
		if isDuplicateAccount(err) {
			h.audit.LogFromRequest(r, auth.ActionRegister, req.Username, auth.StatusFailure, nil)
			httputil.WriteConflict(w, err.Error())
			return
		}
		requestLogger(r, h.logger).WithError(err).Error("Registration failed")
		httputil.WriteInternalError(w, "")
		return
	}

	h.audit.LogFromRequest(r, auth.ActionRegister, user.Username, auth.StatusSuccess, nil)
	user.Roles = user.EffectiveRoles()
	httputil.WriteSuccess(w, user)
}

// listUsers handles GET /api/users
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		requestLogger(r, h.logger).WithError(err).Error("Failed to list users")
		httputil.WriteInternalError(w, "Failed to fetch users.")
		return
	}
	if users == nil {
		users = []*auth.User{}
	}
	for _, u := range users {
		u.Roles = u.EffectiveRoles()
	}
	httputil.WriteSuccess(w, users)
}

// getUser handles GET /api/users/{username}
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	username, ok := httputil.ParsePathStringOrError(w, r, "username")
	if !ok {
		return
	}

	user, err := h.users.FindByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			httputil.WriteNotFoundError(w, "User not found")
			return
		}
		requestLogger(r, h.logger).WithError(err).Error("Failed to fetch user")
		httputil.WriteInternalError(w, "Failed to fetch user.")
		return
	}
	user.Roles = user.EffectiveRoles()
	httputil.WriteSuccess(w, user)
}

// usernameExists handles GET /api/users/exists/username/{username}
func (h *UserHandlers) usernameExists(w http.ResponseWriter, r *http.Request) {
	username, ok := httputil.ParsePathStringOrError(w, r, "username")
	if !ok {
		return
	}
	exists, err := h.users.ExistsByUsername(r.Context(), username)
	if err != nil {
		requestLogger(r, h.logger).WithError(err).Error("Failed to check username")
		httputil.WriteInternalError(w, "")
		return
	}
	httputil.WriteSuccess(w, exists)
}

// emailExists handles GET /api/users/exists/email/{email}
func (h *UserHandlers) emailExists(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}
	exists, err := h.users.ExistsByEmail(r.Context(), email)
	if err != nil {
		requestLogger(r, h.logger).WithError(err).Error("Failed to check email")
		httputil.WriteInternalError(w, "")
		return
	}
	httputil.WriteSuccess(w, exists)
}
