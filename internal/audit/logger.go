// Package audit writes the per-request trail of requests served under impersonation.
package audit

import (
	"context"

	"go.uber.org/zap"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/service"
)

// ActionLogger appends an action to a session's trail. *service.Service implements it.
type ActionLogger interface {
	LogAction(ctx context.Context, sessionID string, in service.LogActionInput) error
}

// Request describes one completed request served under an impersonation session.
type Request struct {
	SessionID  string
	Transport  string // "http" or "grpc"
	Method     string // HTTP method or gRPC full method
	Route      string // chi route pattern; empty for gRPC
	Status     string
	DurationMs int64
	ClientIP   string
	UserAgent  string
}

// RequestLogger records REQUEST_COMPLETED entries. It is best-effort: failures are logged and never
// returned, so the request that was already served is not failed after the fact.
type RequestLogger interface {
	LogRequest(ctx context.Context, r Request)
}

// Logger implements RequestLogger on top of an ActionLogger.
type Logger struct {
	actions ActionLogger
	logger  *zap.Logger
}

// NewLogger returns a Logger. actions may be nil; then LogRequest does nothing.
func NewLogger(actions ActionLogger, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{actions: actions, logger: logger}
}

// LogRequest appends a REQUEST_COMPLETED entry for r.
func (l *Logger) LogRequest(ctx context.Context, r Request) {
	if l == nil || l.actions == nil || r.SessionID == "" {
		return
	}
	var ar ActionResource
	if r.Transport == "grpc" {
		ar = ParseFullMethod(r.Method)
	} else {
		ar = ParseRoute(r.Method, r.Route)
	}
	details := map[string]any{
		"transport":   r.Transport,
		"method":      r.Method,
		"action":      ar.Action,
		"status":      r.Status,
		"duration_ms": r.DurationMs,
		"client_ip":   r.ClientIP,
	}
	if r.Route != "" {
		details["route"] = r.Route
	}
	if r.UserAgent != "" {
		details["user_agent"] = r.UserAgent
	}
	err := l.actions.LogAction(context.WithoutCancel(ctx), r.SessionID, service.LogActionInput{
		Action:     domain.ActionRequestCompleted,
		EntityType: ar.Resource,
		Details:    details,
	})
	if err != nil {
		l.logger.Warn("audit: failed to record request",
			zap.String("session_id", r.SessionID),
			zap.String("method", r.Method),
			zap.Error(err))
	}
}
