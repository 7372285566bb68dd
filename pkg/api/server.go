package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/contextkeys"
	"github.com/platinummonkey/festival/pkg/middleware"
	"github.com/platinummonkey/festival/pkg/observability"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Dependencies are the collaborators of the API server
type Dependencies struct {
	Users        UserStore
	Festivals    FestivalStore
	Performances PerformanceStore

	Tokens TokenIssuer
	Hasher auth.PasswordHasher

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Audit   *auth.AuditLogger

	// StaticDir serves the web pages when set
	StaticDir string
}

// Server represents our API server
type Server struct {
	router              *mux.Router
	authHandlers        *AuthHandlers
	festivalHandlers    *FestivalHandlers
	performanceHandlers *PerformanceHandlers
	userHandlers        *UserHandlers
	staticDir           string
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	if deps.Audit == nil {
		deps.Audit = auth.NewAuditLogger(deps.Logger)
	}
	if deps.Hasher == nil {
		deps.Hasher = auth.NewBcryptHasher(0)
	}

	s := &Server{
		router:              mux.NewRouter(),
		authHandlers:        NewAuthHandlers(deps.Users, deps.Tokens, deps.Hasher, deps.Audit, deps.Metrics, deps.Logger),
		festivalHandlers:    NewFestivalHandlers(deps.Festivals, deps.Logger),
		performanceHandlers: NewPerformanceHandlers(deps.Performances, deps.Festivals, deps.Logger),
		userHandlers:        NewUserHandlers(deps.Users, deps.Hasher, deps.Audit, deps.Logger),
		staticDir:           deps.StaticDir,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.RegisterRoutes(s.authHandlers)
	s.RegisterRoutes(s.festivalHandlers)
	s.RegisterRoutes(s.performanceHandlers)
	s.RegisterRoutes(s.userHandlers)

	// Static pages last so API routes take precedence
	if s.staticDir != "" {
		s.router.PathPrefix("/").
			Handler(http.FileServer(http.Dir(s.staticDir))).
			Methods(http.MethodGet, http.MethodHead)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Use installs router-level middleware, which sees the matched route
func (s *Server) Use(mwf ...mux.MiddlewareFunc) {
	s.router.Use(mwf...)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// Routes lists every registered method and path template
func (s *Server) Routes() []middleware.RouteRef {
	var routes []middleware.RouteRef
	_ = s.router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		tpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		for _, m := range methods {
			routes = append(routes, middleware.RouteRef{Method: strings.ToUpper(m), Path: tpl})
		}
		return nil
	})
	return routes
}

// requestLogger prefers the logger installed by the logging middleware,
// which carries the request id.
func requestLogger(r *http.Request, fallback *observability.Logger) *observability.Logger {
	if _, ok := r.Context().Value(contextkeys.LoggerKey).(*observability.Logger); ok {
		return observability.FromContext(r.Context())
	}
	return fallback
}
