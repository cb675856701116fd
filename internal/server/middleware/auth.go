package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"casedesk/backend/internal/security"
	"casedesk/backend/internal/server/apierrors"
	"casedesk/backend/internal/server/interceptors"
)

// Authenticate verifies the operator's Bearer token and places the Principal in the request context,
// which also makes the operator's home organization the effective tenant. Requests without a valid
// token get 401.
func Authenticate(verifier security.TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := interceptors.ParseBearer(r.Header.Get("Authorization"))
			if token == "" {
				apierrors.Unauthorized(w, "missing or invalid authorization")
				return
			}
			p, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("operator token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				apierrors.Unauthorized(w, "missing or invalid authorization")
				return
			}
			next.ServeHTTP(w, r.WithContext(interceptors.WithPrincipal(r.Context(), p)))
		})
	}
}
