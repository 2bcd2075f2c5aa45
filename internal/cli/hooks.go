package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprigdev/sprig/internal/ingest"
)

// NewHookCommands creates the hook-* entrypoints git invokes. Each parses
// its own payload format and appends one transaction.
//
// Hook commands never fail the user's underlying git operation: any
// ingestion error is reported as a warning on stderr and the command
// exits 0. Only an explicit read command treats storage failures as
// fatal.
func NewHookCommands(rootOpts *RootOptions) []*cobra.Command {
	postCommit := &cobra.Command{
		Use:    "hook-post-commit",
		Short:  "Record a newly created commit (git post-commit hook)",
		Hidden: true,
		Args:   cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(rootOpts, cmd, func(in *ingest.Ingestor) error {
				return in.PostCommit(cmd.Context())
			})
		},
	}

	postRewrite := &cobra.Command{
		Use:    "hook-post-rewrite <kind>",
		Short:  "Record amended/rebased commits (git post-rewrite hook)",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(rootOpts, cmd, func(in *ingest.Ingestor) error {
				return in.PostRewrite(cmd.Context(), args[0], cmd.InOrStdin())
			})
		},
	}

	postCheckout := &cobra.Command{
		Use:    "hook-post-checkout <old> <new> <flag>",
		Short:  "Record a HEAD move (git post-checkout hook)",
		Hidden: true,
		Args:   cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(rootOpts, cmd, func(in *ingest.Ingestor) error {
				return in.PostCheckout(cmd.Context(), args[0], args[1], args[2])
			})
		},
	}

	refTransaction := &cobra.Command{
		Use:    "hook-reference-transaction <state>",
		Short:  "Record a batch of ref updates (git reference-transaction hook)",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(rootOpts, cmd, func(in *ingest.Ingestor) error {
				_, err := in.ReferenceTransaction(cmd.Context(), args[0], cmd.InOrStdin())
				return err
			})
		},
	}

	preAutoGC := &cobra.Command{
		Use:    "hook-pre-auto-gc",
		Short:  "Pin logged commits before garbage collection (git pre-auto-gc hook)",
		Hidden: true,
		Args:   cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(rootOpts, cmd, func(in *ingest.Ingestor) error {
				pinned, err := in.PreAutoGC(cmd.Context())
				if err != nil {
					return err
				}
				if pinned > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "sprig: pinned %d commits before gc\n", pinned)
				}
				return nil
			})
		},
	}

	return []*cobra.Command{postCommit, postRewrite, postCheckout, refTransaction, preAutoGC}
}

// runHook opens the environment, runs one ingestion, and downgrades every
// failure to a warning.
func runHook(rootOpts *RootOptions, cmd *cobra.Command, fn func(*ingest.Ingestor) error) error {
	e, err := openEnv(rootOpts)
	if err != nil {
		warnf(cmd.ErrOrStderr(), "%v", err)
		return nil
	}
	defer e.close()

	in := &ingest.Ingestor{Repo: e.repo, Log: e.log}
	if err := fn(in); err != nil {
		warnf(cmd.ErrOrStderr(), "%v", err)
		warnf(cmd.ErrOrStderr(), "some events may have been lost; the underlying git operation was not affected")
	}
	return nil
}
