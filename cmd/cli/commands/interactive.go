package commands

import (
	"bufio"
	"context"
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
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session where you can run multiple commands against one
connection. Use "as <userID>" to switch the acting user. Pending donation writes are
retried in the background while the session is open.

Type 'help' to see available commands, 'exit' or 'quit' to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\n🚀 Starting interactive session...")
			fmt.Fprintln(out, "Type 'help' for available commands, 'exit' or 'quit' to leave")

			ctx, cancel := context.WithCancel(app.Ctx)
			defer cancel()
			go runRetryLoop(ctx, app, retryInterval(app))

			commands := siblingCommands(cmd)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				if exit := runLine(app, commands, scanner.Text(), out); exit {
					return nil
				}
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("error reading input: %w", err)
			}
			return nil
		},
	}
}

// siblingCommands returns the root's subcommands that make sense inside a session
func siblingCommands(cmd *cobra.Command) map[string]*cobra.Command {
	commands := make(map[string]*cobra.Command)
	for _, sub := range cmd.Parent().Commands() {
		switch sub.Name() {
		case "interactive", "completion", "help", "serve":
			continue
		}
		commands[sub.Name()] = sub
	}
	return commands
}

// runLine executes one session line and reports whether the session should end
func runLine(app *AppContext, commands map[string]*cobra.Command, line string, out io.Writer) bool {
	parts, err := parseCommandLine(strings.TrimSpace(line))
	if err != nil {
		fmt.Fprintf(out, "❌ Error parsing command: %v\n\n", err)
		return false
	}
	if len(parts) == 0 {
		return false
	}
	name, args := parts[0], parts[1:]

	switch name {
	case "exit", "quit":
		fmt.Fprintln(out, "👋 Goodbye!")
		return true
	case "help":
		printInteractiveHelp(out, commands)
		return false
	case "as":
		if len(args) != 1 {
			fmt.Fprintln(out, "❌ Usage: as <userID>")
			return false
		}
		app.ActorID = args[0]
		fmt.Fprintf(out, "Acting as %s\n", app.ActorID)
		return false
	}

	target, ok := commands[name]
	if !ok {
		fmt.Fprintf(out, "❌ Unknown command: %s (type 'help' for available commands)\n\n", name)
		return false
	}

	// Flags keep their values between runs unless reset
	target.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
		_ = flag.Value.Set(flag.DefValue)
	})

	// Run RunE directly so PersistentPreRunE does not reconnect
	if err := target.ParseFlags(args); err != nil {
		fmt.Fprintf(out, "❌ Error parsing flags: %v\n\n", err)
		return false
	}
	args = target.Flags().Args()

	if target.Args != nil {
		if err := target.Args(target, args); err != nil {
			fmt.Fprintf(out, "❌ Error: %v\n\n", err)
			return false
		}
	}
	if err := target.ValidateFlagGroups(); err != nil {
		fmt.Fprintf(out, "❌ Error: %v\n\n", err)
		return false
	}

	target.SetOut(out)
	if err := target.RunE(target, args); err != nil {
		fmt.Fprintf(out, "❌ Error: %v\n\n", err)
	}
	return false
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
		fmt.Fprintf(out, "  %-45s %s\n", cmd.Use, cmd.Short)
	}

	fmt.Fprintf(out, "\n  %-45s %s\n", "as <userID>", "Switch the acting user")
	fmt.Fprintf(out, "  %-45s %s\n", "help", "Show this help message")
	fmt.Fprintf(out, "  %-45s %s\n", "exit, quit", "Exit the interactive session")
}

// parseCommandLine splits a command line into arguments, respecting single and double quotes
func parseCommandLine(line string) ([]string, error) {
	var args []string
	var current strings.Builder
	var inQuote rune
	quoted := false

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
			quoted = true
		case unicode.IsSpace(r):
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if inQuote != 0 {
		return nil, fmt.Errorf("unclosed quote: %c", inQuote)
	}
	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}
	return args, nil
}
