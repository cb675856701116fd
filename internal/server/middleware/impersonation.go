package middleware

import (
	"net/http"
	"strconv"

	"casedesk/backend/internal/server/apierrors"
	"casedesk/backend/internal/server/interceptors"
)

// Impersonation resolves the X-Impersonation-Session header. Without the header it does nothing.
// An active session is attached to the request context, becomes the effective tenant, and is
// reported through X-Impersonation-Remaining-Seconds and X-Impersonation-Org-Id. An unknown, ended
// or expired session sets X-Impersonation-Invalid and the request continues unimpersonated.
// If the session store cannot be read the request fails with 503.
func Impersonation(p *interceptors.Propagator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(interceptors.HeaderSession)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx, res, err := p.Resolve(r.Context(), token)
			if err != nil {
				apierrors.Unavailable(w, "impersonation session store unavailable")
				return
			}
			if res.Invalid {
				w.Header().Set(interceptors.HeaderInvalid, "true")
			} else if res.Context != nil {
				w.Header().Set(interceptors.HeaderRemainingSeconds, strconv.FormatInt(res.RemainingSeconds, 10))
				w.Header().Set(interceptors.HeaderOrgID, res.Context.TargetOrganizationID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
