package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "casedesk/backend/internal/impersonation/service"

// Validation outcomes recorded on the validations counter.
const (
	outcomeValid   = "valid"
	outcomeMissing = "missing"
	outcomeEnded   = "ended"
	outcomeExpired = "expired"
)

type instruments struct {
	started     metric.Int64Counter
	ended       metric.Int64Counter
	denied      metric.Int64Counter
	validations metric.Int64Counter
	logged      metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	m := mp.Meter(instrumentationName)
	var (
		in  instruments
		err error
	)
	if in.started, err = m.Int64Counter("casedesk.impersonation.sessions.started",
		metric.WithDescription("Impersonation sessions started")); err != nil {
		return nil, err
	}
	if in.ended, err = m.Int64Counter("casedesk.impersonation.sessions.ended",
		metric.WithDescription("Impersonation sessions ended explicitly")); err != nil {
		return nil, err
	}
	if in.denied, err = m.Int64Counter("casedesk.impersonation.sessions.denied",
		metric.WithDescription("Start requests rejected by the permission check")); err != nil {
		return nil, err
	}
	if in.validations, err = m.Int64Counter("casedesk.impersonation.validations",
		metric.WithDescription("Session validations by outcome")); err != nil {
		return nil, err
	}
	if in.logged, err = m.Int64Counter("casedesk.impersonation.audit.entries",
		metric.WithDescription("Audit entries appended by action")); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *instruments) validation(ctx context.Context, outcome string) {
	in.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (in *instruments) entry(ctx context.Context, action string) {
	in.logged.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}
