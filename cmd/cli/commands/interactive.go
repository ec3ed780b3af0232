package commands

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// InteractiveCmd creates the interactive command
func InteractiveCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session where you can run multiple commands against one
open store. The session will keep running until you type 'exit' or 'quit'.

Use 'as <user_id>' or 'login <email>' to switch the acting user. Type 'help' to see available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(app, cmd.Parent(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func runInteractive(app *AppContext, rootCmd *cobra.Command, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "\n🚀 Starting interactive session...")
	fmt.Fprintln(out, "Type 'help' for available commands, 'exit' or 'quit' to leave")

	commands := make(map[string]*cobra.Command)
	for _, subCmd := range rootCmd.Commands() {
		if subCmd.Name() != "interactive" && subCmd.Name() != "completion" && subCmd.Name() != "help" {
			commands[subCmd.Name()] = subCmd
		}
	}

	scanner := bufio.NewScanner(in)

	for {
		prompt := "> "
		if app.ActorID != "" {
			prompt = app.ActorID + "> "
		} else if app.Email != "" {
			prompt = app.Email + "> "
		}
		fmt.Fprint(out, prompt)

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Parse command (respecting quotes)
		parts, err := parseCommandLine(line)
		if err != nil {
			fmt.Fprintf(out, "❌ Error parsing command: %v\n\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}
		cmdName := parts[0]
		cmdArgs := parts[1:]

		switch cmdName {
		case "exit", "quit":
			fmt.Fprintln(out, "👋 Goodbye!")
			return nil
		case "help":
			printInteractiveHelp(out, commands)
			continue
		case "as":
			app.Email = ""
			if len(cmdArgs) == 0 {
				app.ActorID = ""
				fmt.Fprintln(out, "Acting anonymously")
			} else {
				app.ActorID = cmdArgs[0]
			}
			continue
		case "login":
			if len(cmdArgs) != 1 {
				fmt.Fprintln(out, "❌ Usage: login <email>")
				continue
			}
			app.ActorID = ""
			app.Email = cmdArgs[0]
			if _, err := app.Actor(); err != nil {
				app.Email = ""
				fmt.Fprintf(out, "❌ Error: %v\n\n", err)
				continue
			}
			fmt.Fprintf(out, "Signed in as %s\n", app.Email)
			continue
		}

		targetCmd, exists := commands[cmdName]
		if !exists {
			fmt.Fprintf(out, "❌ Unknown command: %s (type 'help' for available commands)\n\n", cmdName)
			continue
		}

		// Reset flags left over from the previous run
		targetCmd.Flags().VisitAll(func(flag *pflag.Flag) {
			flag.Changed = false
			flag.Value.Set(flag.DefValue)
		})

		// Run RunE directly so PersistentPreRunE does not set the app up again
		if err := targetCmd.ParseFlags(cmdArgs); err != nil {
			fmt.Fprintf(out, "❌ Error parsing flags: %v\n\n", err)
			continue
		}
		if err := targetCmd.ValidateRequiredFlags(); err != nil {
			fmt.Fprintf(out, "❌ Error: %v\n\n", err)
			continue
		}

		cmdArgs = targetCmd.Flags().Args()

		if targetCmd.Args != nil {
			if err := targetCmd.Args(targetCmd, cmdArgs); err != nil {
				fmt.Fprintf(out, "❌ Error: %v\n\n", err)
				continue
			}
		}

		targetCmd.SetOut(out)
		if targetCmd.RunE != nil {
			if err := targetCmd.RunE(targetCmd, cmdArgs); err != nil {
				fmt.Fprintf(out, "❌ Error: %v\n\n", err)
			}
		} else if targetCmd.Run != nil {
			targetCmd.Run(targetCmd, cmdArgs)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	return nil
}

func printInteractiveHelp(out io.Writer, commands map[string]*cobra.Command) {
	fmt.Fprintln(out, "\nAvailable commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(out, "  %-60s %s\n", cmd.Use, cmd.Short)
	}

	fmt.Fprintf(out, "\n  %-60s %s\n", "as [user_id]", "Act as another user (no ID to act anonymously)")
	fmt.Fprintf(out, "  %-60s %s\n", "login <email>", "Sign in with the password in CHARITY_HUB_PASSWORD")
	fmt.Fprintf(out, "  %-60s %s\n", "help", "Show this help message")
	fmt.Fprintf(out, "  %-60s %s\n", "exit, quit", "Exit the interactive session")
}

// parseCommandLine splits a command line into arguments, respecting quoted strings
// Supports both single and double quotes
func parseCommandLine(line string) ([]string, error) {
	var args []string
	var current strings.Builder
	var inQuote rune // 0 if not in quote, '"' or '\'' if in quote

	for _, r := range line {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			inQuote = r
		case unicode.IsSpace(r):
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if inQuote != 0 {
		return nil, fmt.Errorf("unclosed quote: %c", inQuote)
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args, nil
}
