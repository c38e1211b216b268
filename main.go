package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"readingroom/collection"
	"readingroom/config"
	"readingroom/domain"
	"readingroom/guard"
	"readingroom/library"
)

var errLoginFirst = errors.New("Not logged in. Run `readingroom login` first.")

// app is the state shared by every command and the shell.
type app struct {
	cfgPath string
	cfg     config.FileConfig
	logger  *zap.Logger
	mgr     *library.LibraryManager
	ctx     context.Context

	in  *bufio.Scanner
	out io.Writer
	tty bool // stdin is a terminal; passwords are read masked
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{
		ctx: context.Background(),
		in:  bufio.NewScanner(in),
		out: out,
	}
}

func main() {
	a := newApp(os.Stdin, os.Stdout)
	a.tty = term.IsTerminal(int(os.Stdin.Fd()))
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message(err))
		os.Exit(1)
	}
}

// open loads configuration and restores the stored session once.
func (a *app) open() error {
	if a.mgr != nil {
		return nil
	}
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	mgr, err := library.Open(a.ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return err
	}
	a.cfg, a.logger, a.mgr = cfg, logger, mgr
	return nil
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

// enter runs raw through the route guard.
func (a *app) enter(raw string) (guard.Location, error) {
	loc, err := a.mgr.Navigate(raw)
	if errors.Is(err, guard.ErrUnauthenticated) {
		return loc, errLoginFirst
	}
	return loc, err
}

// ask prompts for one field. An empty answer keeps current.
func (a *app) ask(label, current string) string {
	if current != "" {
		fmt.Fprintf(a.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(a.out, "%s: ", label)
	}
	if !a.in.Scan() {
		return current
	}
	if v := strings.TrimSpace(a.in.Text()); v != "" {
		return v
	}
	return current
}

func (a *app) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N]: ", prompt)
	if !a.in.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(a.in.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

// readPassword reads a password with masking when stdin is a terminal.
func (a *app) readPassword(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	if !a.tty {
		if !a.in.Scan() {
			return "", io.ErrUnexpectedEOF
		}
		return a.in.Text(), nil
	}
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(a.out)
	return string(bytePassword), nil
}

// message is the text shown to the user for err.
func message(err error) string {
	var f *collection.Failure
	if errors.As(err, &f) {
		return f.Message
	}
	var v *domain.ValidationError
	if errors.As(err, &v) {
		return v.Error()
	}
	return err.Error()
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
