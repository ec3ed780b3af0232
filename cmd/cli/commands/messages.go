package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// PostMessageCmd creates the post-message command
func PostMessageCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "post-message <team_id> <content>",
		Short: "Post a message to a team's chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			message, err := app.Coordinator.PostMessage(app.Ctx, actor, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Message %s posted to team %s\n\n", message.ID, message.TeamID)
			return nil
		},
	}
}

// MessagesCmd creates the messages command
func MessagesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <team_id>",
		Short: "Show a team's chat, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			actor, err := app.Actor()
			if err != nil {
				return err
			}
			messages, err := app.Coordinator.ListMessages(app.Ctx, actor, args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			for _, m := range messages {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.SentAt.Format("2006-01-02 15:04"), m.SenderID, m.Content)
			}
			if len(messages) == 0 {
				fmt.Fprintln(out, "No messages yet.")
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Show only the latest N messages (0 for all)")

	return cmd
}
