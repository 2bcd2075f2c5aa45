package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprigdev/sprig/internal/graph"
	"github.com/sprigdev/sprig/internal/render"
)

// SmartlogOptions holds flags for the smartlog command.
type SmartlogOptions struct {
	*RootOptions
	Hidden       bool
	BranchesOnly bool
	Watch        bool
}

// NewSmartlogCommand creates the smartlog command.
func NewSmartlogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SmartlogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "smartlog",
		Aliases: []string{"sl"},
		Short:   "Render the smartlog",
		Long: `Render the reconstructed view of in-progress history: the commits you
are working on, pinned to the main-branch ancestry they grew out of.

Hidden commits (manually hidden, superseded by a rewrite) are omitted by
default; --hidden includes them, each labeled with its suppression
reason.

Examples:
  sprig smartlog
  sprig smartlog --hidden
  sprig sl --only-branches
  sprig sl --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmartlog(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Hidden, "hidden", false, "include hidden commits, labeled with their reason")
	cmd.Flags().BoolVar(&opts.BranchesOnly, "only-branches", false, "foreground only commits with a branch (or HEAD)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-render whenever the repository changes")

	return cmd
}

func runSmartlog(opts *SmartlogOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	if opts.Watch {
		return watchSmartlog(cmd.Context(), opts, e, cmd.OutOrStdout())
	}

	out, err := renderOnce(cmd.Context(), opts, e)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

// renderOnce builds and renders the graph from a fresh snapshot of the
// log and the refs.
func renderOnce(ctx context.Context, opts *SmartlogOptions, e *env) (string, error) {
	events, err := e.log.EventsSince(ctx, 0)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "cannot read event log", err)
	}

	g, err := graph.Build(graph.Params{
		Repo:         e.repo,
		Events:       events,
		MainBranch:   e.cfg.MainBranch,
		Horizon:      e.cfg.Horizon,
		ShowHidden:   opts.Hidden,
		BranchesOnly: opts.BranchesOnly,
	})
	if err != nil {
		return "", WrapExitError(ExitCommandError, "cannot build commit graph", err)
	}

	return render.Smartlog(g), nil
}
