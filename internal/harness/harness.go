// Package harness executes scenario files end to end: repository
// operations are driven through the same ingestion paths the git hooks
// use, against an in-memory repository and an in-memory event log, and
// the rendered smartlog is compared against a golden file.
//
// Each scenario runs in a fresh database for isolation. The
// deterministic clock makes commit times and event stamps reproducible,
// so renders compare byte-for-byte.
package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
	"github.com/sprigdev/sprig/internal/graph"
	"github.com/sprigdev/sprig/internal/ingest"
	"github.com/sprigdev/sprig/internal/render"
	"github.com/sprigdev/sprig/internal/testutil"
)

// fullIDLen is the width short scenario ids are padded to.
const fullIDLen = 40

// Result is the outcome of one scenario run.
type Result struct {
	// Output is the rendered smartlog.
	Output string

	// Events is the full event log after all steps.
	Events []eventlog.Stored

	// Repo is the final repository state, for assertions beyond the
	// render.
	Repo *testutil.Repo
}

// Harness executes one scenario. It tracks the checkout state (which
// branch is current, or detached) the way git does, so commit steps can
// advance the right ref.
type Harness struct {
	repo  *testutil.Repo
	log   *eventlog.Store
	clock *testutil.DeterministicClock
	ing   *ingest.Ingestor

	curBranch string
	detached  bool
}

// Run executes a scenario and returns the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := eventlog.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory event log: %w", err)
	}
	defer st.Close()

	repo := testutil.NewRepo()
	clock := testutil.NewDeterministicClock()

	mainBranch := scenario.MainBranch
	if mainBranch == "" {
		mainBranch = gitrepo.DefaultMainBranch
	}

	h := &Harness{
		repo:      repo,
		log:       st,
		clock:     clock,
		ing:       &ingest.Ingestor{Repo: repo, Log: st, Now: clock.Now},
		curBranch: mainBranch,
	}

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, &step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	events, err := st.EventsSince(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	g, err := graph.Build(graph.Params{
		Repo:         repo,
		Events:       events,
		MainBranch:   mainBranch,
		ShowHidden:   scenario.Flags.Hidden,
		BranchesOnly: scenario.Flags.OnlyBranches,
	})
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	return &Result{
		Output: render.Smartlog(g),
		Events: events,
		Repo:   repo,
	}, nil
}

func (h *Harness) executeStep(ctx context.Context, step *Step) error {
	switch {
	case step.Commit != nil:
		return h.commit(ctx, step.Commit)
	case step.Checkout != nil:
		return h.checkout(ctx, step.Checkout)
	case step.Branch != nil:
		return h.branch(ctx, step.Branch)
	case step.Amend != nil:
		return h.amend(ctx, step.Amend)
	case step.Rebase != nil:
		return h.rebase(ctx, step.Rebase)
	case len(step.Hide) > 0:
		return h.hide(ctx, step.Hide, true)
	case len(step.Unhide) > 0:
		return h.hide(ctx, step.Unhide, false)
	default:
		return fmt.Errorf("empty step")
	}
}

// commit creates a commit on the current checkout and runs the
// post-commit ingestion path.
func (h *Harness) commit(ctx context.Context, step *CommitStep) error {
	head, _, err := h.repo.Head()
	if err != nil {
		return err
	}

	var parents []gitrepo.CommitID
	if len(step.Parents) > 0 {
		for _, p := range step.Parents {
			id, err := h.resolve(p)
			if err != nil {
				return err
			}
			parents = append(parents, id)
		}
	} else if !head.IsZero() {
		parents = []gitrepo.CommitID{head}
	}

	id := fullID(step.ID)
	h.repo.AddCommit(id, parents, step.Summary, h.clock.Now())
	h.moveHead(id)
	return h.ing.PostCommit(ctx)
}

// checkout moves HEAD and runs the post-checkout ingestion path. A local
// branch name attaches; anything else detaches at the resolved commit.
func (h *Harness) checkout(ctx context.Context, step *CheckoutStep) error {
	old, _, err := h.repo.Head()
	if err != nil {
		return err
	}

	if h.isLocalBranch(step.Target) {
		h.repo.SetHead(step.Target)
		h.curBranch = step.Target
		h.detached = false
	} else {
		id, err := h.resolve(step.Target)
		if err != nil {
			return err
		}
		h.repo.DetachHead(id)
		h.detached = true
	}

	newHead, _, err := h.repo.Head()
	if err != nil {
		return err
	}
	return h.ing.PostCheckout(ctx, orZero(old), orZero(newHead), "1")
}

// branch changes one branch ref and runs the reference-transaction
// ingestion path with the matching payload line.
func (h *Harness) branch(ctx context.Context, step *BranchStep) error {
	var oldID gitrepo.CommitID
	branches, err := h.repo.Branches()
	if err != nil {
		return err
	}
	for _, br := range branches {
		if br.Name == step.Name && br.IsRemote == step.Remote {
			oldID = br.Target
		}
	}

	refName := "refs/heads/" + step.Name
	if step.Remote {
		refName = "refs/remotes/" + step.Name
	}

	var newID gitrepo.CommitID
	if step.Delete {
		h.repo.DeleteBranch(step.Name)
	} else {
		newID, err = h.resolve(step.Target)
		if err != nil {
			return err
		}
		h.repo.SetBranch(step.Name, newID, step.Remote)
	}

	payload := fmt.Sprintf("%s %s %s\n", orZero(oldID), orZero(newID), refName)
	_, err = h.ing.ReferenceTransaction(ctx, "committed", strings.NewReader(payload))
	return err
}

// amend replaces a commit in place. Hook order follows git: post-commit
// for the replacement, then post-rewrite with the pair.
func (h *Harness) amend(ctx context.Context, step *AmendStep) error {
	oldID, err := h.resolve(step.Old)
	if err != nil {
		return err
	}
	oldCommit, err := h.repo.Commit(oldID)
	if err != nil {
		return err
	}

	summary := step.Summary
	if summary == "" {
		summary = oldCommit.Summary
	}

	newID := fullID(step.ID)
	h.repo.AddCommit(newID, oldCommit.Parents, summary, h.clock.Now())
	h.moveHead(newID)

	if err := h.ing.PostCommit(ctx); err != nil {
		return err
	}
	payload := fmt.Sprintf("%s %s\n", oldID, newID)
	return h.ing.PostRewrite(ctx, "amend", strings.NewReader(payload))
}

// rebase replays a stack onto a new base and runs one post-rewrite with
// every pair, the way git reports a finished rebase.
func (h *Harness) rebase(ctx context.Context, step *RebaseStep) error {
	prev, err := h.resolve(step.Onto)
	if err != nil {
		return err
	}

	var payload strings.Builder
	for _, pair := range step.Pairs {
		oldID, err := h.resolve(pair.Old)
		if err != nil {
			return err
		}
		summary := pair.Summary
		if summary == "" {
			if oldCommit, err := h.repo.Commit(oldID); err == nil {
				summary = oldCommit.Summary
			}
		}

		newID := fullID(pair.ID)
		h.repo.AddCommit(newID, []gitrepo.CommitID{prev}, summary, h.clock.Now())
		fmt.Fprintf(&payload, "%s %s\n", oldID, newID)
		prev = newID
	}

	h.moveHead(prev)
	return h.ing.PostRewrite(ctx, "rebase", strings.NewReader(payload.String()))
}

// hide appends hide or unhide events for all named commits in one
// transaction, mirroring the CLI command.
func (h *Harness) hide(ctx context.Context, names []string, hide bool) error {
	at := h.clock.Now()
	txn := eventlog.Transaction{ID: eventlog.AllocateTransactionID()}
	for _, name := range names {
		id, err := h.resolve(name)
		if err != nil {
			return err
		}
		if hide {
			txn.Events = append(txn.Events, eventlog.CommitHidden{Commit: id, Time: at})
		} else {
			txn.Events = append(txn.Events, eventlog.CommitUnhidden{Commit: id, Time: at})
		}
	}
	_, _, err := h.log.Append(ctx, txn)
	return err
}

// moveHead advances the checkout to id: the current branch when
// attached, HEAD directly when detached.
func (h *Harness) moveHead(id gitrepo.CommitID) {
	if h.detached {
		h.repo.DetachHead(id)
		return
	}
	h.repo.SetBranch(h.curBranch, id, false)
	h.repo.SetHead(h.curBranch)
}

// resolve maps a branch name or short commit id to a full commit id.
func (h *Harness) resolve(name string) (gitrepo.CommitID, error) {
	if id, err := h.repo.Resolve(name); err == nil {
		return id, nil
	}
	// Short ids of new commits resolve through padding before the commit
	// exists as a prefix.
	id := fullID(name)
	if _, err := h.repo.Commit(id); err == nil {
		return id, nil
	}
	return "", fmt.Errorf("cannot resolve %q", name)
}

func (h *Harness) isLocalBranch(name string) bool {
	branches, err := h.repo.Branches()
	if err != nil {
		return false
	}
	for _, br := range branches {
		if !br.IsRemote && br.Name == name {
			return true
		}
	}
	return false
}

// fullID pads a short scenario id to full hash width with trailing
// zeros, keeping the short prefix the renderer shows.
func fullID(short string) gitrepo.CommitID {
	if len(short) >= fullIDLen {
		return gitrepo.CommitID(short[:fullIDLen])
	}
	return gitrepo.CommitID(short + strings.Repeat("0", fullIDLen-len(short)))
}

func orZero(id gitrepo.CommitID) string {
	if id.IsZero() {
		return gitrepo.ZeroID
	}
	return string(id)
}
