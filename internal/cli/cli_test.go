package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/service"
	"casedesk/backend/internal/security"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeSessions struct {
	active   []*domain.Session
	ended    map[string]string
	report   *service.ChainReport
	entries  []*domain.AuditEntry
	gotRange *domain.TimeRange
	err      error
}

func (f *fakeSessions) GetActiveSessions(context.Context, string) ([]*domain.Session, error) {
	return f.active, f.err
}

func (f *fakeSessions) EndSession(_ context.Context, id, notes string) error {
	if f.err != nil {
		return f.err
	}
	f.ended[id] = notes
	return nil
}

func (f *fakeSessions) VerifySessionChain(context.Context, string) (*service.ChainReport, error) {
	return f.report, f.err
}

func (f *fakeSessions) GetOrganizationAuditLogs(_ context.Context, _ string, r *domain.TimeRange) ([]*domain.AuditEntry, error) {
	f.gotRange = r
	return f.entries, f.err
}

func run(t *testing.T, f *fakeSessions, args ...string) (string, error) {
	t.Helper()
	released := false
	root := NewRootCommand(Deps{
		OpenSessions: func(context.Context) (Sessions, func(), error) {
			return f, func() { released = true }, nil
		},
		Tokens: func(dev bool) (TokenIssuer, error) {
			if !dev {
				return nil, errors.New("JWT_PRIVATE_KEY is not set")
			}
			return security.NewTestTokenProvider()
		},
		Now: func() time.Time { return now },
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil && len(args) > 0 && args[0] != "token" {
		assert.True(t, released, "backend released")
	}
	return out.String(), err
}

func TestSessionsList(t *testing.T) {
	f := &fakeSessions{active: []*domain.Session{{
		ID: "s1", TargetOrganizationID: "org-acme", OperatorRole: "support_agent",
		Reason: "Customer escalation", ExpiresAt: now.Add(90 * time.Minute),
	}}}
	out, err := run(t, f, "sessions", "list", "--operator", "op-support")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "org-acme")
	assert.Contains(t, out, "1h30m0s")

	out, err = run(t, &fakeSessions{}, "sessions", "list", "--operator", "op-support")
	require.NoError(t, err)
	assert.Contains(t, out, "No active sessions.")

	_, err = run(t, f, "sessions", "list")
	assert.ErrorContains(t, err, "--operator")
}

func TestSessionsEnd(t *testing.T) {
	f := &fakeSessions{ended: map[string]string{}}
	out, err := run(t, f, "sessions", "end", "s1", "--notes", "resolved")
	require.NoError(t, err)
	assert.Equal(t, "resolved", f.ended["s1"])
	assert.Contains(t, out, "Session s1 ended.")

	_, err = run(t, &fakeSessions{err: service.ErrAlreadyEnded}, "sessions", "end", "s1")
	assert.ErrorIs(t, err, service.ErrAlreadyEnded)
}

func TestAuditVerify(t *testing.T) {
	out, err := run(t, &fakeSessions{report: &service.ChainReport{SessionID: "s1", Entries: 4, Valid: true}}, "audit", "verify", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "intact, 4 entries")

	broken := &service.ChainReport{SessionID: "s1", Entries: 4, Broken: &domain.ChainError{Sequence: 3, Reason: "content hash mismatch"}}
	out, err = run(t, &fakeSessions{report: broken}, "audit", "verify", "s1")
	assert.ErrorIs(t, err, ErrChainBroken)
	assert.Contains(t, out, "BROKEN at sequence 3")
}

func TestAuditExport(t *testing.T) {
	f := &fakeSessions{entries: []*domain.AuditEntry{
		{ID: "e1", SessionID: "s1", Sequence: 1, Action: domain.ActionSessionStarted, CreatedAt: now, Hash: "h1"},
		{ID: "e2", SessionID: "s1", Sequence: 2, Action: domain.ActionViewTenantUsers, Details: map[string]any{"user_count": 2}, CreatedAt: now.Add(time.Second), PrevHash: "h1", Hash: "h2"},
	}}
	out, err := run(t, f, "audit", "export", "--org", "org-acme", "--from", "2026-03-01T00:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, f.gotRange)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), f.gotRange.From)
	assert.True(t, f.gotRange.To.IsZero())

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	var second exportedEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "e2", second.ID)
	assert.Equal(t, "h1", second.PrevHash)
	assert.EqualValues(t, 2, second.Details["user_count"])

	_, err = run(t, f, "audit", "export", "--org", "org-acme", "--to", "yesterday")
	assert.ErrorContains(t, err, "--to")
}

func TestTokenMint(t *testing.T) {
	out, err := run(t, &fakeSessions{}, "token", "mint", "--dev", "--operator", "op-support", "--org", "org-casedesk")
	require.NoError(t, err)

	tp, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	p, err := tp.Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "op-support", p.OperatorID)
	assert.Equal(t, "org-casedesk", p.HomeOrgID)

	_, err = run(t, &fakeSessions{}, "token", "mint", "--operator", "op-support", "--org", "org-casedesk")
	assert.ErrorContains(t, err, "JWT_PRIVATE_KEY")
}
