package interceptors

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"casedesk/backend/internal/impersonation/domain"
)

// Inbound credential and outbound signals of impersonation. gRPC uses the lowercase forms as metadata keys.
const (
	HeaderSession          = "X-Impersonation-Session"
	HeaderRemainingSeconds = "X-Impersonation-Remaining-Seconds"
	HeaderOrgID            = "X-Impersonation-Org-Id"
	HeaderInvalid          = "X-Impersonation-Invalid"

	MetadataSession          = "x-impersonation-session"
	MetadataRemainingSeconds = "x-impersonation-remaining-seconds"
	MetadataOrgID            = "x-impersonation-org-id"
	MetadataInvalid          = "x-impersonation-invalid"
)

// SessionValidator resolves a session token to its context; nil means missing, ended or expired.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (*domain.SessionContext, error)
}

// Resolution is the outcome of resolving an inbound session token.
type Resolution struct {
	// Context is nil when the token was absent or did not resolve to an active session.
	Context *domain.SessionContext
	// Invalid is true when a token was presented but did not resolve.
	Invalid bool
	// RemainingSeconds is set when Context is non-nil.
	RemainingSeconds int64
}

// Propagator resolves session tokens and derives the request context for both transports.
type Propagator struct {
	validator SessionValidator
	now       func() time.Time
	logger    *zap.Logger
}

// NewPropagator returns a Propagator backed by validator.
func NewPropagator(validator SessionValidator, logger *zap.Logger) *Propagator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Propagator{validator: validator, now: time.Now, logger: logger}
}

// Resolve validates token and, when it is active, returns ctx with the session attached and the
// effective tenant overridden. An empty token is a no-op. Store failures are returned as errors and
// must not be treated as a valid session.
func (p *Propagator) Resolve(ctx context.Context, token string) (context.Context, Resolution, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx, Resolution{}, nil
	}
	ctx = WithImpersonationToken(ctx, token)
	sc, err := p.validator.ValidateSession(ctx, token)
	if err != nil {
		p.logger.Error("impersonation session validation failed", zap.Error(err))
		return ctx, Resolution{}, err
	}
	if sc == nil {
		p.logger.Info("impersonation session rejected", zap.String("session_id", token))
		return ctx, Resolution{Invalid: true}, nil
	}
	return WithImpersonation(ctx, sc), Resolution{Context: sc, RemainingSeconds: sc.RemainingSeconds(p.now())}, nil
}

// ImpersonationUnary returns a unary server interceptor that resolves the x-impersonation-session
// metadata, attaches the session to the handler's context, and sends the remaining-seconds, org-id
// or invalid signals as response headers. A validation store failure fails the RPC with Unavailable.
func ImpersonationUnary(p *Propagator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := metadataValue(ctx, MetadataSession)
		if token == "" {
			return handler(ctx, req)
		}
		ctx, res, err := p.Resolve(ctx, token)
		if err != nil {
			return nil, status.Error(codes.Unavailable, "impersonation session store unavailable")
		}
		var md metadata.MD
		if res.Invalid {
			md = metadata.Pairs(MetadataInvalid, "true")
		} else {
			md = metadata.Pairs(
				MetadataRemainingSeconds, strconv.FormatInt(res.RemainingSeconds, 10),
				MetadataOrgID, res.Context.TargetOrganizationID,
			)
		}
		if err := grpc.SetHeader(ctx, md); err != nil {
			p.logger.Debug("set impersonation headers", zap.String("method", info.FullMethod), zap.Error(err))
		}
		return handler(ctx, req)
	}
}

// Guard is the access check handlers call to require an active session.
type Guard interface {
	RequireImpersonation(ctx context.Context) (context.Context, *domain.SessionContext, error)
}

// RequireImpersonation runs guard for a gRPC handler and maps its error to a status.
func RequireImpersonation(ctx context.Context, guard Guard) (context.Context, *domain.SessionContext, error) {
	ctx, sc, err := guard.RequireImpersonation(ctx)
	if err != nil {
		return ctx, nil, StatusFromError(err)
	}
	return ctx, sc, nil
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
