package cli

import (
	"fmt"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/middleware"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for an operator",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Operator identifier (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleOperator, "Role: operator or admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenRole != middleware.RoleOperator && tokenRole != middleware.RoleAdmin {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, tokenSubject, tokenRole, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
