package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"casedesk/backend/internal/impersonation/domain"
)

// emitTimeout bounds a single asynchronous emit.
const emitTimeout = 5 * time.Second

// Mirror forwards audit entries to an AuditEmitter without blocking the caller.
// A nil *Mirror is valid and drops everything.
type Mirror struct {
	emitter AuditEmitter
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewMirror returns a Mirror over emitter. A nil logger is replaced by a no-op logger.
func NewMirror(emitter AuditEmitter, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{emitter: emitter, logger: logger}
}

// Mirror emits e in a goroutine with its own timeout, so request cancellation does not abort it.
// Failures are logged and otherwise ignored.
func (m *Mirror) Mirror(e *domain.AuditEntry) {
	if m == nil || m.emitter == nil || e == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := m.emitter.Emit(ctx, e); err != nil {
			m.logger.Warn("audit mirror emit failed",
				zap.String("session_id", e.SessionID),
				zap.String("action", e.Action),
				zap.Error(err))
		}
	}()
}

// Drain waits for in-flight emits or until ctx is done. Call it before shutting down the log provider.
func (m *Mirror) Drain(ctx context.Context) error {
	if m == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
