// Package main is the entry point for the gitdecor command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dshills/gitdecor/internal/app"
	"github.com/dshills/gitdecor/internal/config"
	"github.com/dshills/gitdecor/internal/decoration"
	"github.com/dshills/gitdecor/internal/host"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errUsage marks command line mistakes; run prints usage for them.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gitdecor", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var g globalFlags
	var showVersion bool
	fs.StringVar(&g.configPath, "config", config.DefaultPath(), "Path to configuration file")
	fs.StringVar(&g.configPath, "c", config.DefaultPath(), "Path to configuration file (shorthand)")
	fs.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "gitdecor - git decorations for file trees\n\n")
		fmt.Fprintf(stderr, "Usage: gitdecor [options] <command> [arguments]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  status <repo>...          Print every decorated path\n")
		fmt.Fprintf(stderr, "  check <repo> <path>...    Print the decoration of each path\n")
		fmt.Fprintf(stderr, "  watch <repo>...           Log decoration changes until interrupted\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if showVersion {
		fmt.Fprintf(stdout, "gitdecor %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	var err error
	switch cmd, cmdArgs := rest[0], rest[1:]; cmd {
	case "status":
		err = runStatus(g, cmdArgs, stdout, stderr)
	case "check":
		err = runCheck(g, cmdArgs, stdout, stderr)
	case "watch":
		err = runWatch(g, cmdArgs, stdout, stderr)
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		return 1
	}
	return 0
}

func newApp(g globalFlags, repos []string, watch bool, stderr io.Writer) (*app.Application, error) {
	return app.New(app.Options{
		ConfigPath:   g.configPath,
		LogLevel:     g.logLevel,
		LogOutput:    stderr,
		Repositories: repos,
		Watch:        watch,
	})
}

func runStatus(g globalFlags, args []string, stdout, stderr io.Writer) error {
	a, err := newApp(g, args, false, stderr)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Start(context.Background()); err != nil {
		return err
	}

	for _, repo := range a.Git().Sessions() {
		branch := "(unknown)"
		if st := repo.Status(); st != nil {
			branch = st.BranchLabel()
		}
		fmt.Fprintf(stdout, "%s on %s\n", repo.Root(), branch)
	}
	for _, e := range a.StatusEntries() {
		fmt.Fprintf(stdout, "  %-2s %s\t%s\n", e.Decoration.Letter, relTo(e.Root, e.Path), e.Decoration.Tooltip)
	}
	return nil
}

func runCheck(g globalFlags, args []string, stdout, stderr io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: check needs a repository and at least one path", errUsage)
	}

	a, err := newApp(g, args[:1], false, stderr)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Start(context.Background()); err != nil {
		return err
	}

	paths := make([]string, 0, len(args)-1)
	for _, p := range args[1:] {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		paths = append(paths, abs)
	}

	var failed bool
	for _, r := range a.Decorate(context.Background(), paths) {
		fmt.Fprintln(stdout, formatResult(r))
		if r.Err != nil {
			failed = true
		}
	}
	if failed {
		return errors.New("some paths could not be decorated")
	}
	return nil
}

func formatResult(r host.Result) string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s\terror: %v", r.Path, r.Err)
	case !r.OK:
		return fmt.Sprintf("%s\t-", r.Path)
	default:
		label := r.Decoration.Tooltip
		if label == "" && r.Decoration.Priority == decoration.PriorityIgnored {
			label = "Ignored"
		}
		return fmt.Sprintf("%s\t%s\t%s", r.Path, strings.TrimSpace(r.Decoration.Letter+" "+label), r.Decoration)
	}
}

func runWatch(g globalFlags, args []string, stdout, stderr io.Writer) error {
	a, err := newApp(g, args, true, stderr)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Sink().OnDidChangeDecorations(func(c host.Change) {
		if len(c.Paths) == 0 {
			return
		}
		fmt.Fprintf(stdout, "%s: %d path(s) changed\n", c.Scope, len(c.Paths))
		for _, p := range c.Paths {
			fmt.Fprintf(stdout, "  %s\n", relTo(c.Scope, p))
		}
	})

	if err := a.Start(ctx); err != nil {
		return err
	}
	a.Logger().Info("watching %d repositories, press Ctrl+C to stop", len(a.Git().Sessions()))
	return a.Run(ctx)
}

// relTo shortens path for display when it lies below root.
func relTo(root, path string) string {
	rel, err := filepath.Rel(filepath.FromSlash(root), filepath.FromSlash(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
