package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/coordinator"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/core/reconciler"
	"github.com/jakechorley/charity-hub/pkg/core/services"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// LogActivityCmd creates the log-activity command
func LogActivityCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log-activity [volunteer_id]",
		Short: "Log a pending activity (defaults to the --as volunteer)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			activityType, _ := cmd.Flags().GetString("type")
			minutes, _ := cmd.Flags().GetInt("minutes")
			date, _ := cmd.Flags().GetString("date")
			project, _ := cmd.Flags().GetString("project")
			team, _ := cmd.Flags().GetString("team")
			description, _ := cmd.Flags().GetString("description")

			activityDate := time.Now().UTC().Truncate(24 * time.Hour)
			if date != "" {
				var err error
				if activityDate, err = parseDate(date); err != nil {
					return err
				}
			}

			actor, err := app.Actor()
			if err != nil {
				return err
			}

			activity, err := app.Coordinator.LogActivity(app.Ctx, actor, services.LogActivityRequest{
				VolunteerID:     userArg(args, 0, actor),
				ProjectID:       optionalString(project),
				TeamID:          optionalString(team),
				Type:            db.ActivityType(activityType),
				DurationMinutes: minutes,
				Date:            activityDate,
				Description:     description,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n✓ Activity logged, awaiting approval\n\n")
			fmt.Fprintf(out, "Activity ID: %s\n", activity.ID)
			fmt.Fprintf(out, "Project:     %s\n", formatOptional(activity.ProjectID))
			fmt.Fprintf(out, "Team:        %s\n\n", formatOptional(activity.TeamID))
			return nil
		},
	}

	cmd.Flags().String("type", string(db.ActivityHoursLogged), "hours_logged, task_completed or training_attended")
	cmd.Flags().Int("minutes", 0, "Duration in minutes")
	cmd.Flags().String("date", "", "Activity date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().String("project", "", "Project the activity was for")
	cmd.Flags().String("team", "", "Team the activity was for")
	cmd.Flags().String("description", "", "What was done")

	return cmd
}

// ApproveCmd creates the approve command
func ApproveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <activity_id> <points>",
		Short: "Approve an activity and credit its points",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parseInt("points", args[1])
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			result, err := app.Coordinator.Approve(app.Ctx, actor, args[0], points)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.AlreadyApproved {
				fmt.Fprintf(out, "\nActivity %s was already approved; nothing changed\n", result.Activity.ID)
			} else {
				fmt.Fprintf(out, "\n✓ Approved %s for %d points\n", result.Activity.ID, result.Activity.PointsAwarded)
			}
			fmt.Fprintf(out, "Balance for %s: %d\n\n", result.Activity.VolunteerID, result.Balance)
			return nil
		},
	}
}

// RejectCmd creates the reject command
func RejectCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <activity_id>",
		Short: "Reject a pending activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			if err := app.Coordinator.Reject(app.Ctx, actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Rejected %s\n\n", args[0])
			return nil
		},
	}
}

// ActivitiesCmd creates the activities command
func ActivitiesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "activities [volunteer_id]",
		Short: "List a volunteer's activity log (defaults to the --as volunteer)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			activities, err := app.Coordinator.ListActivities(app.Ctx, actor, userArg(args, 0, actor))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d activities:\n\n", len(activities))
			for _, a := range activities {
				status := "pending"
				if a.Approved() {
					status = fmt.Sprintf("approved, %d points", a.PointsAwarded)
				}
				fmt.Fprintf(out, "- %s %s %s (%d min) - %s\n",
					a.ActivityDate.Format("2006-01-02"), a.ID, a.ActivityType, a.DurationMinutes, status)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

// PointsCmd creates the points command
func PointsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "points [volunteer_id]",
		Short: "Show a volunteer's point balance (defaults to the --as volunteer)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			profile, err := app.Coordinator.VolunteerPoints(app.Ctx, actor, userArg(args, 0, actor))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s has %d points\n\n", profile.UserID, profile.Points)
			return nil
		},
	}
}

// ReconcileCmd creates the reconcile command
func ReconcileCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile [volunteer_id]",
		Short: "Recompute cached point balances from approved activity",
		Long: `Recompute cached point balances from the approved activity log and repair any drift.

With a volunteer ID only that volunteer is checked. --all checks everyone once.
--watch keeps running, checking everyone at each occurrence of the configured
reconcile schedule.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			watch, _ := cmd.Flags().GetBool("watch")

			if watch {
				return watchReconcile(app)
			}

			if (len(args) == 1) == all {
				return fmt.Errorf("give either a volunteer_id or --all")
			}

			actor, err := app.Actor()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if all {
				summary, err := app.Coordinator.ReconcileAll(app.Ctx, actor)
				if err != nil {
					return err
				}
				printReconcileSummary(out, summary)
				return nil
			}

			result, err := app.Coordinator.Reconcile(app.Ctx, actor, args[0])
			if err != nil {
				return err
			}
			if result.Drifted {
				fmt.Fprintf(out, "\n⚠️  %s had drifted: cached %d, recomputed %d (repaired)\n\n",
					result.VolunteerID, result.Cached, result.Recomputed)
			} else {
				fmt.Fprintf(out, "\n✓ %s is consistent at %d points\n\n", result.VolunteerID, result.Recomputed)
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Reconcile every volunteer")
	cmd.Flags().Bool("watch", false, "Run on the configured reconcile schedule until interrupted")

	return cmd
}

func watchReconcile(app *AppContext) error {
	schedule := app.Cfg.Reconcile.Schedule
	if schedule == "" {
		return fmt.Errorf("reconcile.schedule is not configured")
	}

	given, err := app.optionalActor()
	if err != nil {
		return err
	}
	var actor model.Actor
	if given != nil {
		actor = *given
	} else if actor, err = app.Resolver.ResolveUser(app.Ctx, app.Cfg.Reconcile.AdminID); err != nil {
		return err
	}

	scheduler, err := reconciler.NewScheduler(schedule, app.Coordinator, actor, app.Logger)
	if err != nil {
		return err
	}

	app.Logger.Info("Watching reconcile schedule", zap.String("schedule", schedule), zap.String("actor", actor.UserID))
	if err := scheduler.Run(app.Ctx); err != nil && app.Ctx.Err() == nil {
		return err
	}
	return nil
}

func printReconcileSummary(out io.Writer, summary *coordinator.ReconcileSummary) {
	fmt.Fprintf(out, "\n✓ Reconciliation complete!\n\n")
	fmt.Fprintf(out, "Checked: %d\n", summary.Checked)
	fmt.Fprintf(out, "Drifted: %d\n", len(summary.Drifted))
	for _, d := range summary.Drifted {
		fmt.Fprintf(out, "  - %s: cached %d, recomputed %d\n", d.VolunteerID, d.Cached, d.Recomputed)
	}
	if len(summary.Failures) > 0 {
		fmt.Fprintf(out, "⚠️  Failed: %d\n", len(summary.Failures))
		for _, f := range summary.Failures {
			fmt.Fprintf(out, "  ✗ %s: %v\n", f.VolunteerID, f.Err)
		}
	}
	fmt.Fprintln(out)
}
