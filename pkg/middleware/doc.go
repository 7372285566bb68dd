// Package middleware provides the HTTP authentication filter, access policy
// gate and credential endpoint throttling of the festival API.
//
// # Request Flow
//
//	request -> AuthFilter -> PolicyGate -> router
//
// AuthFilter: Resolves the security context of every request
//
//	filter := middleware.NewAuthFilter(tokenService, userStore, logger, metrics)
//	// Missing, malformed or expired tokens leave the request Unauthenticated.
//	// Rejection is deferred to the gate.
//
// PolicyGate: Ordered (method, path pattern, requirement) rules, first match wins
//
//	policy := middleware.NewPolicy(middleware.DefaultRules(), cfg.Auth.DenyUnlistedMutations)
//	gate := middleware.NewPolicyGate(policy, auditLogger, metrics)
//	// 401 {"error":"Unauthorized"} when a rule requires authentication
//
// RateLimitMiddleware: Per-IP throttling of login and registration
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultLoginRateLimitConfig())
//	// or middleware.NewDistributedRateLimiter(redisClient, cfg, "") across instances
//	throttle := middleware.NewRateLimitMiddleware(limiter, middleware.CredentialEndpoints(), logger)
//
// # Related Packages
//
//   - pkg/auth: Token service and security context
//   - pkg/httputil: Generic request/response middleware
package middleware
