package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"casedesk/backend/internal/audit"
	"casedesk/backend/internal/impersonation/service"
	"casedesk/backend/internal/server/interceptors"
)

// RequestAudit records REQUEST_COMPLETED on the session's trail after every request served under
// impersonation. It must run after Impersonation. Recording never changes the response. A request
// that ended its own session is not recorded, so SESSION_ENDED stays the last entry.
func RequestAudit(requests audit.RequestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, ok := interceptors.GetImpersonation(r.Context())
			if !ok || requests == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ctx, ended := service.TrackEnded(r.Context())
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))
			if ended(sc.SessionID) {
				return
			}
			requests.LogRequest(r.Context(), audit.Request{
				SessionID:  sc.SessionID,
				Transport:  "http",
				Method:     r.Method,
				Route:      routePattern(r),
				Status:     strconv.Itoa(sw.statusCode),
				DurationMs: time.Since(start).Milliseconds(),
				ClientIP:   ClientIP(r),
				UserAgent:  r.UserAgent(),
			})
		})
	}
}

// ClientIP returns the client address from X-Forwarded-For, X-Real-IP or the connection.
func ClientIP(r *http.Request) string {
	if s := interceptors.FirstForwarded(r.Header.Get("X-Forwarded-For")); s != "" {
		return s
	}
	if s := r.Header.Get("X-Real-IP"); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// routePattern returns the matched chi pattern, or the raw path outside a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
