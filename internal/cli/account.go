package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/service"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// AccountCmd groups account administration commands.
func AccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(accountCreateCmd())
	return cmd
}

func accountCreateCmd() *cobra.Command {
	var (
		name     string
		email    string
		password string
		role     string
		skills   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with any role",
		Long: `Create an account directly in the database. Public signup always
creates plain users, so this is how the first admin is made.

Examples:
  ticketctl account create --email root@example.com --password s3cretpass --role admin
  ticketctl account create --email mod@example.com --password s3cretpass --role moderator --skills react,postgres`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			auth := service.NewAuthService(*c.Config, service.AuthDependencies{
				AccountRepo: c.Accounts,
				Logger:      c.Logger,
			})
			account, err := auth.CreateAccount(cmd.Context(), service.AccountInput{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     domain.AccountRole(strings.ToLower(role)),
				Skills:   splitSkills(skills),
			})
			if apperrors.HasCode(err, apperrors.CodeConflict) {
				return fmt.Errorf("an account with email %s already exists", email)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s created %s %s (%s)\n",
				color.New(color.FgGreen).Sprint("✓"), account.Role, account.Email, account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email local part)")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(domain.AccountRoleUser), "user, moderator or admin")
	cmd.Flags().StringVar(&skills, "skills", "", "comma separated skills")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func splitSkills(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
