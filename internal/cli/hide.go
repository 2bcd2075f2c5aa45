package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprigdev/sprig/internal/eventlog"
)

// NewHideCommand creates the hide command.
func NewHideCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hide <commit>...",
		Short: "Hide commits from the smartlog",
		Long: `Hide one or more commits from the default smartlog view. Arguments may
be branch names, full hashes, or unambiguous hash prefixes.

Hiding is an event, not a repository change: the commits stay intact and
reappear with 'sprig unhide' or under 'sprig smartlog --hidden'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHide(rootOpts, cmd, args, true)
		},
	}
}

// NewUnhideCommand creates the unhide command.
func NewUnhideCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unhide <commit>...",
		Short: "Unhide previously hidden commits",
		Long: `Undo 'sprig hide' for one or more commits. The latest hide/unhide per
commit wins. Unhiding cannot foreground shared main-branch history.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHide(rootOpts, cmd, args, false)
		},
	}
}

// runHide appends hide or unhide events for all named commits in one
// transaction: either every commit's state changes or none does.
func runHide(rootOpts *RootOptions, cmd *cobra.Command, args []string, hide bool) error {
	e, err := openEnv(rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	now := time.Now()
	txn := eventlog.Transaction{ID: eventlog.AllocateTransactionID()}
	for _, arg := range args {
		id, err := e.repo.Resolve(arg)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("cannot resolve %q", arg), err)
		}
		if hide {
			txn.Events = append(txn.Events, eventlog.CommitHidden{Commit: id, Time: now})
		} else {
			txn.Events = append(txn.Events, eventlog.CommitUnhidden{Commit: id, Time: now})
		}
	}

	if _, _, err := e.log.Append(cmd.Context(), txn); err != nil {
		return WrapExitError(ExitCommandError, "cannot record hide state", err)
	}

	for _, event := range txn.Events {
		switch ev := event.(type) {
		case eventlog.CommitHidden:
			fmt.Fprintf(cmd.OutOrStdout(), "Hid commit: %s\n", ev.Commit.Short())
		case eventlog.CommitUnhidden:
			fmt.Fprintf(cmd.OutOrStdout(), "Unhid commit: %s\n", ev.Commit.Short())
		}
	}
	if hide {
		fmt.Fprintln(cmd.OutOrStdout(), "To unhide, run: sprig unhide <commit>")
	}
	return nil
}
