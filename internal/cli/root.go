// Package cli wires the commands: the smartlog and hide/unhide user
// surface, and the hook-* entrypoints git invokes.
package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	// GitDir is an explicit git directory. Empty means discover it by
	// walking upward from the working directory.
	GitDir string
}

// NewRootCommand creates the root command for the sprig CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "sprig",
		Short:         "A reconstructed view of your in-progress git history",
		Long:          "sprig tracks what you are actually working on - which commits matter,\nwhich were superseded by amends and rebases, and which you hid - and\nrenders it as a smartlog.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.GitDir, "git-dir", "", "path to the git directory (default: discover)")

	cmd.AddCommand(NewSmartlogCommand(opts))
	cmd.AddCommand(NewHideCommand(opts))
	cmd.AddCommand(NewUnhideCommand(opts))
	for _, hook := range NewHookCommands(opts) {
		cmd.AddCommand(hook)
	}

	return cmd
}

// env is the per-invocation handle set: the repository, its config, and
// the event log. Opened once per command, closed on exit.
type env struct {
	repo *gitrepo.GitDir
	cfg  *gitrepo.Config
	log  *eventlog.Store
}

func (e *env) close() {
	if e.log != nil {
		e.log.Close()
	}
}

// openEnv opens the repository and event log for one invocation.
func openEnv(opts *RootOptions) (*env, error) {
	var repo *gitrepo.GitDir
	var err error
	if opts.GitDir != "" {
		repo, err = gitrepo.Open(opts.GitDir)
	} else {
		repo, err = gitrepo.Discover(".")
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "not a git repository", err)
	}

	cfg, err := repo.LoadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	log, err := eventlog.Open(filepath.Join(repo.StateDir(), "events.sqlite3"))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot open event log", err)
	}

	return &env{repo: repo, cfg: cfg, log: log}, nil
}
