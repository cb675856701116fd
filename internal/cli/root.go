// Package cli implements casedeskctl, the operations tool for impersonation sessions and their
// audit trails. Commands run directly against the session store.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/service"
)

// Sessions is the part of the session engine the commands use. *service.Service implements it.
type Sessions interface {
	GetActiveSessions(ctx context.Context, operatorUserID string) ([]*domain.Session, error)
	EndSession(ctx context.Context, sessionID, notes string) error
	VerifySessionChain(ctx context.Context, sessionID string) (*service.ChainReport, error)
	GetOrganizationAuditLogs(ctx context.Context, organizationID string, r *domain.TimeRange) ([]*domain.AuditEntry, error)
}

// TokenIssuer mints operator tokens. *security.TokenProvider implements it.
type TokenIssuer interface {
	IssueOperatorToken(operatorID, homeOrgID string) (string, time.Time, error)
}

// Deps opens the backends lazily so commands that do not need a database never connect to one.
type Deps struct {
	// OpenSessions returns the session engine and a release function.
	OpenSessions func(ctx context.Context) (Sessions, func(), error)
	// Tokens returns the token issuer; dev selects the built-in development key.
	Tokens func(dev bool) (TokenIssuer, error)
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRootCommand returns the casedeskctl command tree.
func NewRootCommand(d Deps) *cobra.Command {
	if d.Now == nil {
		d.Now = time.Now
	}
	root := &cobra.Command{
		Use:           "casedeskctl",
		Short:         "Operate CaseDesk impersonation sessions and audit trails",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSessionsCommand(d), newAuditCommand(d), newTokenCommand(d))
	return root
}

func withSessions(cmd *cobra.Command, d Deps, fn func(ctx context.Context, s Sessions) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, release, err := d.OpenSessions(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, s)
}
