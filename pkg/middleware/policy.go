package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/observability"
)

// Requirement is the authentication state a rule demands
type Requirement string

const (
	RequirePublic        Requirement = "public"
	RequireAuthenticated Requirement = "authenticated"
)

// Rule maps request methods and path patterns to a requirement.
//
// An empty Methods list matches any method. In Patterns, "*" matches exactly
// one path segment and a trailing "/**" matches the prefix itself plus any
// number of further segments.
type Rule struct {
	Methods     []string
	Patterns    []string
	Requirement Requirement
}

// Matches reports whether the rule applies to method and path
func (r Rule) Matches(method, path string) bool {
	if len(r.Methods) > 0 {
		found := false
		for _, m := range r.Methods {
			if strings.EqualFold(m, method) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, p := range r.Patterns {
		if MatchPath(p, path) {
			return true
		}
	}
	return false
}

// MatchPath matches path against a single pattern
func MatchPath(pattern, path string) bool {
	patternSegs := strings.Split(pattern, "/")
	pathSegs := strings.Split(path, "/")

	if n := len(patternSegs); n > 0 && patternSegs[n-1] == "**" {
		prefix := patternSegs[:n-1]
		if len(pathSegs) < len(prefix) {
			return false
		}
		return segmentsMatch(prefix, pathSegs[:len(prefix)])
	}

	if len(patternSegs) != len(pathSegs) {
		return false
	}
	return segmentsMatch(patternSegs, pathSegs)
}

func segmentsMatch(pattern, path []string) bool {
	for i, seg := range pattern {
		if seg == "*" {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

// StaticPages lists the HTML pages and asset trees served without authentication
var StaticPages = []string{
	"/",
	"/index.html",
	"/login.html",
	"/register.html",
	"/performances.html",
	"/organizer.html",
	"/staff.html",
	"/festivals.html",
	"/favicon.ico",
	"/assets/**",
	"/css/**",
	"/js/**",
}

// DefaultRules returns the access policy of the festival API in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		{Methods: []string{http.MethodOptions}, Patterns: []string{"/**"}, Requirement: RequirePublic},
		{Patterns: StaticPages, Requirement: RequirePublic},
		{Methods: []string{http.MethodPost}, Patterns: []string{"/api/auth/login", "/api/auth/register"}, Requirement: RequirePublic},
		{Methods: []string{http.MethodGet}, Patterns: []string{"/api/festivals/**"}, Requirement: RequirePublic},
		{Patterns: []string{"/api/auth/me"}, Requirement: RequireAuthenticated},
		{Methods: []string{http.MethodPost}, Patterns: []string{"/api/performances/**"}, Requirement: RequireAuthenticated},
		{Methods: []string{http.MethodPost}, Patterns: []string{"/api/festivals/*/performances"}, Requirement: RequireAuthenticated},
	}
}

// Policy is an ordered rule list evaluated first-match-wins
type Policy struct {
	rules                 []Rule
	denyUnlistedMutations bool
}

// NewPolicy creates a policy. When denyUnlistedMutations is false, requests
// matching no rule are public; when true, unmatched POST, PUT, PATCH and
// DELETE requests require authentication.
func NewPolicy(rules []Rule, denyUnlistedMutations bool) *Policy {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Policy{rules: copied, denyUnlistedMutations: denyUnlistedMutations}
}

// Decide returns the requirement for a request and whether an explicit rule matched
func (p *Policy) Decide(method, path string) (Requirement, bool) {
	for _, rule := range p.rules {
		if rule.Matches(method, path) {
			return rule.Requirement, true
		}
	}
	if p.denyUnlistedMutations && isMutating(method) {
		return RequireAuthenticated, false
	}
	return RequirePublic, false
}

// RouteRef identifies a registered route by method and path template
type RouteRef struct {
	Method string
	Path   string
}

// UnprotectedMutations returns the mutating routes that only the public
// fallback admits. Used to warn at startup.
func (p *Policy) UnprotectedMutations(routes []RouteRef) []RouteRef {
	var out []RouteRef
	for _, rt := range routes {
		if !isMutating(rt.Method) {
			continue
		}
		if req, matched := p.Decide(rt.Method, templateToPath(rt.Path)); !matched && req == RequirePublic {
			out = append(out, rt)
		}
	}
	return out
}

// templateToPath turns "/api/festivals/{id}" into a concrete sample path
func templateToPath(tpl string) string {
	segs := strings.Split(tpl, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			segs[i] = "1"
		}
	}
	return strings.Join(segs, "/")
}

func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// PolicyGate enforces a Policy against the security context set by AuthFilter
type PolicyGate struct {
	policy  *Policy
	audit   *auth.AuditLogger
	metrics *observability.Metrics
}

// NewPolicyGate creates the gate; audit and metrics may be nil
func NewPolicyGate(policy *Policy, audit *auth.AuditLogger, metrics *observability.Metrics) *PolicyGate {
	if audit == nil {
		audit = auth.NewAuditLogger(nil)
	}
	return &PolicyGate{policy: policy, audit: audit, metrics: metrics}
}

// Handler wraps an HTTP handler with the gate
func (g *PolicyGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requirement, _ := g.policy.Decide(r.Method, r.URL.Path)

		switch requirement {
		case RequireAuthenticated:
			switch auth.SecurityContextFrom(r.Context()).(type) {
			case auth.Authenticated:
				g.metrics.RecordPolicyDecision(string(requirement), observability.OutcomeSuccess)
			default:
				g.metrics.RecordPolicyDecision(string(requirement), observability.OutcomeDenied)
				g.audit.LogFromRequest(r, auth.ActionAccessDenied, "", auth.StatusDenied, nil)
				httputil.WriteUnauthorized(w, "Unauthorized")
				return
			}
		default:
			g.metrics.RecordPolicyDecision(string(requirement), observability.OutcomeSuccess)
		}

		next.ServeHTTP(w, r)
	})
}
