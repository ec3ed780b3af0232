package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CreateTeamCmd creates the create-team command
func CreateTeamCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create-team <project_id> <name> <max_members>",
		Short: "Create a team within a project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxMembers, err := parseInt("max_members", args[2])
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			team, err := app.Coordinator.CreateTeam(app.Ctx, actor, args[0], args[1], maxMembers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n✓ Team created successfully!\n\n")
			fmt.Fprintf(out, "Team ID:     %s\n", team.ID)
			fmt.Fprintf(out, "Name:        %s\n", team.Name)
			fmt.Fprintf(out, "Max Members: %d\n\n", team.MaxMembers)
			return nil
		},
	}
}

// JoinCmd creates the join command
func JoinCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "join <team_id> [volunteer_id]",
		Short: "Add a volunteer to a team (defaults to the --as volunteer)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			membership, err := app.Coordinator.Join(app.Ctx, actor, args[0], userArg(args, 1, actor))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ %s joined team %s (membership %s)\n\n",
				membership.VolunteerID, membership.TeamID, membership.ID)
			return nil
		},
	}
}

// LeaveCmd creates the leave command
func LeaveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "leave <team_id> [volunteer_id]",
		Short: "Close a volunteer's team membership (defaults to the --as volunteer)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			result, err := app.Coordinator.Leave(app.Ctx, actor, args[0], userArg(args, 1, actor))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n✓ %s left team %s\n", result.Membership.VolunteerID, result.Membership.TeamID)
			if result.LeaderCleared {
				fmt.Fprintln(out, "⚠️  The team no longer has a leader")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

// AssignLeaderCmd creates the assign-leader command
func AssignLeaderCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-leader <team_id> <volunteer_id>",
		Short: "Make an active member the team leader",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			team, err := app.Coordinator.AssignLeader(app.Ctx, actor, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ %s now leads team %s\n\n", formatOptional(team.TeamLeaderID), team.Name)
			return nil
		},
	}
}

// MembersCmd creates the members command
func MembersCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members <team_id>",
		Short: "List a team's members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			actor, err := app.Actor()
			if err != nil {
				return err
			}
			members, err := app.Coordinator.ListMembers(app.Ctx, actor, args[0], !all)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d members:\n\n", len(members))
			for _, m := range members {
				status := "active"
				if !m.IsActive {
					status = "left"
				}
				fmt.Fprintf(out, "- %s - joined %s - %s\n", m.VolunteerID, m.JoinedAt.Format("2006-01-02"), status)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Include members who have left")

	return cmd
}
