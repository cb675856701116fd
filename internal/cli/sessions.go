package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCommand(d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and end impersonation sessions",
	}

	var operator string
	list := &cobra.Command{
		Use:     "list",
		Short:   "List an operator's active sessions",
		Example: `  casedeskctl sessions list --operator op-support`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if operator == "" {
				return errors.New("--operator is required")
			}
			return withSessions(cmd, d, func(ctx context.Context, s Sessions) error {
				list, err := s.GetActiveSessions(ctx, operator)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No active sessions.")
					return nil
				}
				now := d.Now()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SESSION\tTARGET ORG\tROLE\tEXPIRES\tREMAINING\tREASON")
				for _, sess := range list {
					remaining := time.Duration(sess.RemainingSeconds(now)) * time.Second
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						sess.ID, sess.TargetOrganizationID, sess.OperatorRole,
						sess.ExpiresAt.UTC().Format(time.RFC3339), remaining, sess.Reason)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&operator, "operator", "", "operator user id")

	var notes string
	end := &cobra.Command{
		Use:     "end SESSION_ID",
		Short:   "End a session before it expires",
		Example: `  casedeskctl sessions end 6f1c... --notes "ticket resolved"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, d, func(ctx context.Context, s Sessions) error {
				if err := s.EndSession(ctx, args[0], notes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s ended.\n", args[0])
				return nil
			})
		},
	}
	end.Flags().StringVar(&notes, "notes", "", "notes recorded on the SESSION_ENDED entry")

	cmd.AddCommand(list, end)
	return cmd
}
