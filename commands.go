package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"readingroom/guard"
	"readingroom/library"
	"readingroom/report"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "readingroom",
		Short:         "Reading room administration client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&a.cfgPath, "config", a.cfgPath, "path to readingroom.yaml")

	root.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		refreshCmd(a),
		dashboardCmd(a),
		resources.command(a, "add", "edit", "delete"),
		studentsCmd(a),
		borrowCmd(a),
		returns.command(a, "add", "delete"),
		users.command(a, "add", "edit", "delete"),
		reportCmd(a),
		openCmd(a),
		shellCmd(a),
	)
	return root
}

// ------------------ Session ------------------

func loginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and store the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := ""
			if len(args) == 1 {
				username = args[0]
			}
			return a.login(username)
		},
	}
}

func (a *app) login(username string) error {
	if username == "" {
		username = a.ask("Username", "")
	}
	password, err := a.readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	profile, err := a.mgr.Login(a.ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s!\n\n", profile.DisplayName())
	if err := a.openLocation(string(guard.AfterLogin)); err != nil {
		fmt.Fprintln(a.out, message(err))
	}
	return nil
}

func logoutCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.mgr.CurrentUser(); !ok {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}
			if !yes && !a.confirm("Do you want to log out?") {
				return nil
			}
			if err := a.mgr.Logout(a.ctx); err != nil {
				fmt.Fprintf(a.out, "Warning: server logout failed: %s\n", message(err))
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, ok := a.mgr.CurrentUser()
			if !ok {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}
			fmt.Fprintf(a.out, "Logged in as %s", user.DisplayName())
			if user.UserLevel != "" {
				fmt.Fprintf(a.out, " (%s)", user.UserLevel)
			}
			fmt.Fprintln(a.out)
			if claims, err := guard.ParseClaims(a.mgr.Session().Token()); err == nil && !claims.ExpiresAt.IsZero() {
				if a.mgr.Guard().Authenticated() {
					fmt.Fprintf(a.out, "Token expires %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
				} else {
					fmt.Fprintln(a.out, "Token expired. Run `readingroom refresh` or log in again.")
				}
			}
			return nil
		},
	}
}

func refreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token with the stored refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.RefreshToken(a.ctx); err != nil {
				if errors.Is(err, library.ErrNoSession) {
					return errLoginFirst
				}
				return err
			}
			fmt.Fprintln(a.out, "Access token renewed.")
			return nil
		},
	}
}

// ------------------ Dashboard & report ------------------

func dashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals of students, resources, borrows and returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dashboard()
		},
	}
}

func (a *app) dashboard() error {
	if _, err := a.enter(string(guard.Dashboard)); err != nil {
		return err
	}
	counts, err := a.mgr.Dashboard(a.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%-16s %d\n", "Students", counts.Students)
	fmt.Fprintf(a.out, "%-16s %d\n", "Resources", counts.Resources)
	fmt.Fprintf(a.out, "%-16s %d\n", "Borrow records", counts.Borrows)
	fmt.Fprintf(a.out, "%-16s %d\n", "Return records", counts.Returns)
	return nil
}

func reportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate-report",
		Short: "Write the borrow and return activity report as PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generateReport(out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default from config)")
	return cmd
}

func (a *app) generateReport(path string) error {
	if _, err := a.enter(string(guard.GenerateReport)); err != nil {
		return err
	}
	if path == "" {
		path = a.cfg.ReportPath
	}
	r := report.NewPDFRenderer(a.cfg.ReportTitle, a.cfg.ReportRowsPerPage)
	n, err := a.mgr.GenerateReport(a.ctx, path, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Report with %d rows (%d pages) written to %s\n", n, r.Pages(n), path)
	return nil
}

// ------------------ Navigation ------------------

func openCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <location>",
		Short: "Open a route such as /students or /borrow?student_id=S1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.openLocation(args[0])
		},
	}
}

func (a *app) openLocation(raw string) error {
	loc, err := a.enter(raw)
	if err != nil {
		return err
	}
	term := loc.Query.Get("search")
	switch loc.Route {
	case guard.Login:
		return a.login("")
	case guard.Dashboard:
		return a.dashboard()
	case guard.Resources:
		return resources.list(a, term)
	case guard.Students:
		return students.list(a, term)
	case guard.Borrow:
		if f, ok := a.mgr.OpenBorrowFor(loc); ok {
			fmt.Fprintf(a.out, "New borrow for %s %s\n", f.Draft().StudentID, loc.Query.Get("first_name"))
			_, err := borrows.submit(a, f)
			return err
		}
		return borrows.list(a, term)
	case guard.Return:
		return returns.list(a, term)
	case guard.Users:
		return users.list(a, term)
	case guard.GenerateReport:
		return a.generateReport("")
	}
	return fmt.Errorf("%w: %s", guard.ErrUnknownRoute, loc.Route)
}
