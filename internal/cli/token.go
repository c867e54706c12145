package cli

import (
	"fmt"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/auth"
	"github.com/ACM-VIT/codex-portal/internal/config"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints a session token for an identity. Used by operators to
// hand out access while the front-end sign-in flow lives elsewhere.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		name  string
		email string
		admin bool
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if name == "" || email == "" {
				return fmt.Errorf("--name and --email are required")
			}
			authn := auth.New(cfg.Auth.Secret, cfg.Auth.Domain)
			if ttl == 0 {
				ttl = config.TTLDuration(cfg.Auth.TokenTTL, 7*24*time.Hour)
			}
			token, err := authn.IssueToken(name, email, admin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "institutional email")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin privileges")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to config)")
	return cmd
}
