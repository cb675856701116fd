package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCommand(d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Operator token utilities",
	}

	var operator, org string
	var dev bool
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint an operator access token for local testing",
		Long: `Mint signs an operator token with JWT_PRIVATE_KEY, or with the built-in
development key when --dev is set. The server accepts development-key tokens only
when it runs without JWT_PUBLIC_KEY and OPERATOR_JWKS_URL.`,
		Example: `  casedeskctl token mint --dev --operator op-support --org org-casedesk`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if operator == "" || org == "" {
				return errors.New("--operator and --org are required")
			}
			issuer, err := d.Tokens(dev)
			if err != nil {
				return err
			}
			tok, exp, err := issuer.IssueOperatorToken(operator, org)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	mint.Flags().StringVar(&operator, "operator", "", "operator user id (sub)")
	mint.Flags().StringVar(&org, "org", "", "operator home organization id")
	mint.Flags().BoolVar(&dev, "dev", false, "sign with the built-in development key")

	cmd.AddCommand(mint)
	return cmd
}
