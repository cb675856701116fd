package interceptors

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/metadata"

	"casedesk/backend/internal/impersonation/domain"
)

// fakeValidator resolves tokens from a fixed table.
type fakeValidator struct {
	mu       sync.Mutex
	sessions map[string]*domain.SessionContext
	err      error
	calls    int
}

func (f *fakeValidator) ValidateSession(_ context.Context, id string) (*domain.SessionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sessions[id], nil
}

func activeSession(id, org string, expiresIn time.Duration) *domain.SessionContext {
	return &domain.SessionContext{
		SessionID:            id,
		OperatorUserID:       "u1",
		OperatorRole:         "support_agent",
		TargetOrganizationID: org,
		ExpiresAt:            time.Now().Add(expiresIn),
	}
}

// fakeStream captures headers set with grpc.SetHeader.
type fakeStream struct {
	mu     sync.Mutex
	header metadata.MD
}

func (s *fakeStream) Method() string { return "/test.Service/Method" }

func (s *fakeStream) SetHeader(md metadata.MD) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = metadata.Join(s.header, md)
	return nil
}

func (s *fakeStream) SendHeader(md metadata.MD) error { return s.SetHeader(md) }

func (s *fakeStream) SetTrailer(metadata.MD) error { return nil }
