package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"casedesk/backend/internal/server/interceptors"
)

// RequestLogger logs each request with zap. 5xx responses log at error, 4xx at warn, the rest at info.
// Operator and session ids are filled in by CaptureIdentity further down the chain.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			ids := &requestIDs{}
			next.ServeHTTP(sw, r.WithContext(withRequestIDs(r.Context(), ids)))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", routePattern(r)),
				zap.Int("status", sw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.Int64("bytes", sw.written),
				zap.String("remote_addr", ClientIP(r)),
			}
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			if ids.operatorID != "" {
				fields = append(fields, zap.String("operator_id", ids.operatorID))
			}
			if ids.sessionID != "" {
				fields = append(fields, zap.String("session_id", ids.sessionID))
			}

			switch {
			case sw.statusCode >= 500:
				logger.Error("http request", fields...)
			case sw.statusCode >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}

// CaptureIdentity copies the operator and session ids of the request into the holder set up by
// RequestLogger. Mount it after Authenticate and Impersonation.
func CaptureIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ids := requestIDsFrom(r.Context()); ids != nil {
			if id, ok := interceptors.GetOperatorID(r.Context()); ok {
				ids.operatorID = id
			}
			if sc, ok := interceptors.GetImpersonation(r.Context()); ok {
				ids.sessionID = sc.SessionID
			}
		}
		next.ServeHTTP(w, r)
	})
}
