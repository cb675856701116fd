// Package telemetry mirrors persisted impersonation audit entries to an external log pipeline.
package telemetry

import (
	"context"

	"casedesk/backend/internal/impersonation/domain"
)

// AuditEmitter sends a persisted audit entry to an external sink (e.g. OTel Logs). The database
// remains the record of truth; emitters are best-effort.
type AuditEmitter interface {
	Emit(ctx context.Context, e *domain.AuditEntry) error
}
