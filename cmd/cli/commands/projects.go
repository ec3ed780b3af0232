package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/charity-hub/pkg/core/services"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// CreateProjectCmd creates the create-project command
func CreateProjectCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-project <title>",
		Short: "Create a project owned by a charity (defaults to the --as charity)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			charityID, _ := cmd.Flags().GetString("charity")
			description, _ := cmd.Flags().GetString("description")
			volunteers, _ := cmd.Flags().GetInt("volunteers")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")

			startDate, err := optionalDate(start)
			if err != nil {
				return err
			}
			endDate, err := optionalDate(end)
			if err != nil {
				return err
			}

			actor, err := app.Actor()
			if err != nil {
				return err
			}
			if charityID == "" {
				charityID = actor.UserID
			}

			project, err := app.Coordinator.CreateProject(app.Ctx, actor, services.CreateProjectRequest{
				CharityID:          charityID,
				Title:              args[0],
				Description:        description,
				RequiredVolunteers: volunteers,
				StartDate:          startDate,
				EndDate:            endDate,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n✓ Project created successfully!\n\n")
			fmt.Fprintf(out, "Project ID: %s\n", project.ID)
			fmt.Fprintf(out, "Title:      %s\n", project.Title)
			fmt.Fprintf(out, "Status:     %s\n\n", project.Status)
			return nil
		},
	}

	cmd.Flags().String("charity", "", "Owning charity ID (admins only)")
	cmd.Flags().String("description", "", "Project description")
	cmd.Flags().Int("volunteers", 1, "Number of volunteers required")
	cmd.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "End date (YYYY-MM-DD)")

	return cmd
}

// SetProjectStatusCmd creates the set-project-status command
func SetProjectStatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-project-status <project_id> <pending|active|completed|cancelled>",
		Short: "Move a project through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			project, err := app.Coordinator.SetProjectStatus(app.Ctx, actor, args[0], db.ProjectStatus(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Project %s is now %s\n\n", project.ID, project.Status)
			return nil
		},
	}
}

// DeleteProjectCmd creates the delete-project command
func DeleteProjectCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-project <project_id>",
		Short: "Delete a project and its teams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			if err := app.Coordinator.DeleteProject(app.Ctx, actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Deleted project %s\n\n", args[0])
			return nil
		},
	}
}

// CreateSkillCmd creates the create-skill command
func CreateSkillCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create-skill <name>",
		Short: "Add a skill to the global skill list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			skill, err := app.Coordinator.CreateSkill(app.Ctx, actor, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Skill %q created (ID: %s)\n\n", skill.Name, skill.ID)
			return nil
		},
	}
}

// AddProjectSkillCmd creates the add-project-skill command
func AddProjectSkillCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-project-skill <project_id> <skill_id>",
		Short: "Mark a skill as required by a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			if err := app.Coordinator.AddProjectSkill(app.Ctx, actor, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Project %s requires skill %s\n\n", args[0], args[1])
			return nil
		},
	}
}

// SetVolunteerSkillCmd creates the set-volunteer-skill command
func SetVolunteerSkillCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-volunteer-skill <volunteer_id> <skill_id> <proficiency>",
		Short: "Record a volunteer's proficiency (1-5) in a skill",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			proficiency, err := parseInt("proficiency", args[2])
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			skill, err := app.Coordinator.SetVolunteerSkill(app.Ctx, actor, args[0], args[1], proficiency)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ %s has skill %s at proficiency %d\n\n",
				skill.VolunteerID, skill.SkillID, skill.Proficiency)
			return nil
		},
	}
}
