package interceptors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"casedesk/backend/internal/db"
	"casedesk/backend/internal/impersonation/service"
	"casedesk/backend/internal/security"
)

// StatusFromError maps service and guard errors to a gRPC status error. Unknown errors are
// reported as Internal without leaking their text.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, security.ErrUnauthenticated), errors.Is(err, security.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, service.ErrAlreadyEnded):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, db.ErrNoTenant):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		return status.Error(codes.Unavailable, "impersonation session store unavailable")
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
