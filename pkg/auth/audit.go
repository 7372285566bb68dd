package auth

import (
	"net/http"

	"github.com/platinummonkey/festival/pkg/contextkeys"
	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/observability"
)

// Audit action constants
const (
	ActionLogin        = "auth.login"
	ActionRegister     = "auth.register"
	ActionAccessDenied = "auth.access_denied"
)

// Audit status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// AuditLogger writes security events as structured log lines
type AuditLogger struct {
	logger *observability.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &AuditLogger{logger: logger.WithField("component", "audit")}
}

// LogFromRequest records action by username. Passwords and tokens are never logged.
func (al *AuditLogger) LogFromRequest(r *http.Request, action, username, status string, err error) {
	entry := al.logger.WithFields(map[string]interface{}{
		"action":     action,
		"username":   username,
		"status":     status,
		"ip_address": httputil.ClientIP(r),
		"user_agent": r.UserAgent(),
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": contextkeys.GetRequestID(r.Context()),
	}).WithError(err)

	if status == StatusSuccess {
		entry.Info("audit event")
		return
	}
	entry.Warn("audit event")
}
