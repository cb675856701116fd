package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"casedesk/backend/internal/server/apierrors"
)

// HTTP serves /health/live and /health/ready.
type HTTP struct {
	checker *Checker
	logger  *zap.Logger
}

// NewHTTP returns the HTTP health handlers.
func NewHTTP(checker *Checker, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{checker: checker, logger: logger}
}

// Routes mounts the probes on r.
func (h *HTTP) Routes(r chi.Router) {
	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)
}

// Live always answers 200 while the process serves requests.
func (h *HTTP) Live(w http.ResponseWriter, _ *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready answers 200 when the database and policy engine respond, 503 otherwise.
func (h *HTTP) Ready(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		if err := h.checker.Ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			apierrors.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "reason": err.Error()})
			return
		}
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
