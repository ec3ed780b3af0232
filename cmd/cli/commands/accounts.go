package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/charity-hub/internal/auth"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/core/services"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// RegisterCmd creates the register command
func RegisterCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <volunteer|charity|admin> <email> <full_name>",
		Short: "Register a user account",
		Long: `Register a volunteer, charity or admin account.

Volunteers and charities can register without --as. The first admin can
too; later admins must be registered by an existing admin.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			bio, _ := cmd.Flags().GetString("bio")
			org, _ := cmd.Flags().GetString("org")
			license, _ := cmd.Flags().GetString("license")
			description, _ := cmd.Flags().GetString("description")

			var account model.Account
			switch db.Role(args[0]) {
			case db.RoleVolunteer:
				account = model.VolunteerAccount{Profile: db.VolunteerProfile{Bio: bio}}
			case db.RoleCharity:
				account = model.CharityAccount{Profile: db.CharityProfile{
					OrganizationName: org,
					LicenseNumber:    license,
					Description:      description,
				}}
			case db.RoleAdmin:
				account = model.AdminAccount{}
			default:
				return fmt.Errorf("role must be volunteer, charity or admin, got: %s", args[0])
			}

			hash, err := auth.HashCredential(password)
			if err != nil {
				return err
			}

			actor, err := app.optionalActor()
			if err != nil {
				return err
			}

			result, err := app.Coordinator.Register(app.Ctx, actor, services.RegisterRequest{
				Email:          args[1],
				CredentialHash: hash,
				FullName:       args[2],
				Account:        account,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n✓ Registered %s %s\n\n", result.Account.Role(), result.User.Email)
			fmt.Fprintf(out, "User ID: %s\n\n", result.User.ID)
			return nil
		},
	}

	cmd.Flags().String("password", "", "Password for the new account (at least 8 characters)")
	cmd.Flags().String("bio", "", "Volunteer bio")
	cmd.Flags().String("org", "", "Charity organization name")
	cmd.Flags().String("license", "", "Charity license number")
	cmd.Flags().String("description", "", "Charity description")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// WhoAmICmd creates the whoami command
func WhoAmICmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami [user_id]",
		Short: "Show an account (defaults to the --as user)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			account, err := app.Coordinator.LoadAccount(app.Ctx, actor, userArg(args, 0, actor))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%s (%s)\n", account.User.FullName, account.User.Email)
			fmt.Fprintf(out, "ID:     %s\n", account.User.ID)
			fmt.Fprintf(out, "Role:   %s\n", account.User.Role)
			fmt.Fprintf(out, "Active: %t\n", account.User.IsActive)
			switch a := account.Account.(type) {
			case model.VolunteerAccount:
				fmt.Fprintf(out, "Points: %d\n", a.Profile.Points)
				if a.Profile.LastActivity != nil {
					fmt.Fprintf(out, "Last activity: %s\n", a.Profile.LastActivity.Format("2006-01-02"))
				}
			case model.CharityAccount:
				fmt.Fprintf(out, "Organization: %s\n", a.Profile.OrganizationName)
				fmt.Fprintf(out, "Verified:     %t\n", a.Profile.IsVerified)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

// DeactivateUserCmd creates the deactivate-user command
func DeactivateUserCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate-user <user_id>",
		Short: "Deactivate a user and close their team memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			closed, err := app.Coordinator.DeactivateUser(app.Ctx, actor, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Deactivated %s (%d memberships closed)\n\n", args[0], closed)
			return nil
		},
	}
}

// PurgeUserCmd creates the purge-user command
func PurgeUserCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-user <user_id>",
		Short: "Permanently delete a user and everything that cascades from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			if err := app.Coordinator.PurgeUser(app.Ctx, actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Purged %s\n\n", args[0])
			return nil
		},
	}
}

// VerifyCharityCmd creates the verify-charity command
func VerifyCharityCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-charity <charity_id>",
		Short: "Mark a charity as verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revoke, _ := cmd.Flags().GetBool("revoke")

			actor, err := app.Actor()
			if err != nil {
				return err
			}
			if err := app.Coordinator.VerifyCharity(app.Ctx, actor, args[0], !revoke); err != nil {
				return err
			}
			if revoke {
				fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Verification revoked for %s\n\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Verified %s\n\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().Bool("revoke", false, "Revoke verification instead")

	return cmd
}
