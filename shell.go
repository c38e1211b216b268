package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func shellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.shell()
		},
	}
}

func printShellHelp(a *app) {
	fmt.Fprintln(a.out, "Available commands:")
	fmt.Fprintln(a.out, "  Session: login, logout, whoami, refresh")
	fmt.Fprintln(a.out, "  Pages: dashboard, resources, students, borrow, return, users, generate-report")
	fmt.Fprintln(a.out, "  Records: <page> list [--search term], <page> add, <page> edit <id>, <page> delete <id>")
	fmt.Fprintln(a.out, "  Other: students qr <id>, open <location>, help, exit")
}

// shell reads one command per line and runs it through a fresh command tree
// sharing this app, so the session and loaded lists persist between lines.
func (a *app) shell() error {
	fmt.Fprintln(a.out, "Welcome to the Reading Room administration shell!")
	if user, ok := a.mgr.CurrentUser(); ok {
		fmt.Fprintf(a.out, "Logged in as %s.\n", user.DisplayName())
	}
	printShellHelp(a)

	for {
		fmt.Fprint(a.out, "\n> ")
		if !a.in.Scan() {
			return nil
		}
		line := strings.TrimSpace(a.in.Text())

		switch line {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		case "help":
			printShellHelp(a)
			continue
		}

		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
			continue
		}
		if args[0] == "shell" {
			fmt.Fprintln(a.out, "Already in the shell.")
			continue
		}
		root := newRootCmd(a)
		root.SetArgs(args)
		root.SetOut(a.out)
		root.SetErr(a.out)
		if err := root.Execute(); err != nil {
			fmt.Fprintf(a.out, "Error: %s\n", message(err))
		}
	}
}

// splitArgs splits a shell line on spaces, keeping double-quoted runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case r == ' ' && !quoted:
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote")
	}
	if pending {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}
