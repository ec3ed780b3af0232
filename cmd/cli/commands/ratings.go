package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/charity-hub/pkg/core/services"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// RateCmd creates the rate command
func RateCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate <volunteer|project|team|charity> <target_id> <value>",
		Short: "Rate a volunteer, project, team or charity from 1 to 5",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			comment, _ := cmd.Flags().GetString("comment")

			value, err := parseInt("value", args[2])
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			rating, err := app.Coordinator.Rate(app.Ctx, actor, services.RateRequest{
				TargetType: db.RatedEntityType(args[0]),
				TargetID:   args[1],
				Value:      value,
				Comment:    comment,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Rated %s %s %d/5 (rating %s)\n\n",
				rating.RatedEntityType, rating.RatedEntityID, rating.Value, rating.ID)
			return nil
		},
	}

	cmd.Flags().String("comment", "", "Optional comment")

	return cmd
}

// RatingsCmd creates the ratings command
func RatingsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ratings <volunteer|project|team|charity> <target_id>",
		Short: "List the ratings of a target with their average",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			targetType := db.RatedEntityType(args[0])
			ratings, err := app.Coordinator.ListRatings(app.Ctx, actor, targetType, args[1])
			if err != nil {
				return err
			}
			summary, err := app.Coordinator.AverageRating(app.Ctx, actor, targetType, args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.Count == 0 {
				fmt.Fprintf(out, "\nNo ratings for %s %s\n\n", targetType, args[1])
				return nil
			}
			fmt.Fprintf(out, "\n%s %s: %.2f average from %d ratings\n\n", targetType, args[1], summary.Average, summary.Count)
			for _, r := range ratings {
				line := fmt.Sprintf("- %d/5 by %s on %s", r.Value, r.RaterID, r.CreatedAt.Format("2006-01-02"))
				if r.Comment != "" {
					line += fmt.Sprintf(": %q", r.Comment)
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
