package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"attendance-kiosk/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage operator tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <operator>",
	Short: "Issue a bearer token for the kiosk's admin routes",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenIssue,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd)
	tokenIssueCmd.Flags().Duration("ttl", 0, "Token lifetime (default OPERATOR_TTL)")
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	ttl := mustGetDuration(cmd, "ttl")
	if ttl <= 0 {
		ttl = cfg.OperatorTTL
	}
	tok, err := auth.Issue(args[0], cfg.JWTIssuer, cfg.JWTSigningKey, ttl)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tok.Value)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.ExpiresAt.Format(time.RFC3339))
	return nil
}
