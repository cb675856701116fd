package interceptors

import (
	"context"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"casedesk/backend/internal/audit"
	"casedesk/backend/internal/impersonation/service"
)

// AuditUnary returns a unary server interceptor that records REQUEST_COMPLETED on the session's trail
// after each RPC served under impersonation. skipMethods is the set of full method names to not audit.
// Recording is best-effort and never changes the RPC's outcome. An RPC that ended its own session is
// not recorded.
func AuditUnary(requests audit.RequestLogger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		hctx, ended := service.TrackEnded(ctx)
		resp, err := handler(hctx, req)
		if requests == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		sc, ok := GetImpersonation(ctx)
		if !ok || ended(sc.SessionID) {
			return resp, err
		}
		requests.LogRequest(ctx, audit.Request{
			SessionID:  sc.SessionID,
			Transport:  "grpc",
			Method:     info.FullMethod,
			Status:     status.Code(err).String(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
			UserAgent:  metadataValue(ctx, "user-agent"),
		})
		return resp, err
	}
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := FirstForwarded(vals[0]); s != "" {
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

// FirstForwarded returns the left-most address of an X-Forwarded-For value.
func FirstForwarded(v string) string {
	if i := strings.Index(v, ","); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
