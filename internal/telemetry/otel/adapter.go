package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/telemetry"
)

// instrumentationName is the OTel scope of mirrored audit records.
const instrumentationName = "casedesk.impersonation.audit"

// recordEmitter is the part of otellog.Logger the adapter uses.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewAuditEmitter returns an AuditEmitter that sends entries as OTel log records via provider.
// If provider is nil, returns a no-op emitter.
func NewAuditEmitter(provider *sdklog.LoggerProvider) telemetry.AuditEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

// NewAuditEmitterWithLogger wraps any record emitter; used by tests to capture records.
func NewAuditEmitterWithLogger(l recordEmitter) telemetry.AuditEmitter {
	return &otelEmitter{logger: l}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AuditEntry) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts e to a log record. The body holds the entry's details as JSON.
func (o *otelEmitter) Emit(ctx context.Context, e *domain.AuditEntry) error {
	if e == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetEventName(e.Action)
	rec.SetSeverity(otellog.SeverityInfo)
	if !e.CreatedAt.IsZero() {
		rec.SetTimestamp(e.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if len(e.Details) > 0 {
		body, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		rec.SetBody(otellog.StringValue(string(body)))
	}
	rec.AddAttributes(
		otellog.String("audit.entry_id", e.ID),
		otellog.String("audit.session_id", e.SessionID),
		otellog.String("audit.action", e.Action),
		otellog.Int64("audit.sequence", e.Sequence),
		otellog.String("audit.hash", e.Hash),
	)
	if e.EntityType != "" {
		rec.AddAttributes(otellog.String("audit.entity_type", e.EntityType))
	}
	if e.EntityID != "" {
		rec.AddAttributes(otellog.String("audit.entity_id", e.EntityID))
	}
	o.logger.Emit(ctx, rec)
	return nil
}
