package handler

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func check(t *testing.T, srv *Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check must not return a gRPC error for failed probes: %v", err)
	}
	return resp.GetStatus()
}

func TestCheck_NilChecker(t *testing.T) {
	if got := check(t, NewServer(nil)); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestCheck_NoDependencies(t *testing.T) {
	if got := check(t, NewServer(NewChecker(nil, nil))); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestCheck_PingerFailure(t *testing.T) {
	srv := NewServer(NewChecker(&mockPinger{pingErr: errors.New("connection refused")}, nil))
	if got := check(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestCheck_PolicyCheckerFailure(t *testing.T) {
	srv := NewServer(NewChecker(&mockPinger{}, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}))
	if got := check(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestCheck_AllHealthy(t *testing.T) {
	srv := NewServer(NewChecker(&mockPinger{}, &mockPolicyChecker{}))
	if got := check(t, srv); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestCheck_UnknownService(t *testing.T) {
	_, err := NewServer(nil).Check(context.Background(), &healthpb.HealthCheckRequest{Service: "casedesk.Other"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", status.Code(err))
	}
}

func TestChecker_ReadyWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewChecker(&mockPinger{pingErr: cause}, nil).Ready(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("Ready error = %v, want wrapping %v", err, cause)
	}
	if err.Error() != "database: connection refused" {
		t.Errorf("Ready error = %q", err.Error())
	}
}
