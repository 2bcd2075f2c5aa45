// Package visibility decides, per commit, whether the smartlog shows it by
// default and why not when it doesn't.
package visibility

import (
	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
	"github.com/sprigdev/sprig/internal/rewrite"
)

// Reason classifies a visibility verdict.
type Reason int

const (
	// Visible commits are shown by default.
	Visible Reason = iota

	// ManuallyHidden commits were hidden by an explicit user request and
	// never unhidden since.
	ManuallyHidden

	// Superseded commits were replaced by a rewrite whose surviving
	// successor is itself visible.
	Superseded

	// Public commits are main-branch ancestors reachable only via main.
	// Shared history is suppressed by default even against an explicit
	// unhide; only private in-progress work is foregrounded.
	Public

	// Unreachable commits are claimed by no ref, no observed head, or
	// their object no longer exists.
	Unreachable
)

func (r Reason) String() string {
	switch r {
	case Visible:
		return "visible"
	case ManuallyHidden:
		return "manually hidden"
	case Superseded:
		return "superseded"
	case Public:
		return "public"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Verdict is the resolved visibility of one commit. Successor is set only
// for Superseded.
type Verdict struct {
	Reason    Reason
	Successor gitrepo.CommitID
}

// Context is the snapshot of derived state a Resolver judges against. All
// sets are computed once per invocation from the log and the repository.
type Context struct {
	// Head is the current HEAD commit (possibly empty).
	Head gitrepo.CommitID

	// Hidden is the last-write-wins hide state per commit with any
	// hide/unhide record: true if the latest record is a hide.
	Hidden map[gitrepo.CommitID]bool

	// Rewrites is the derived rewrite graph.
	Rewrites *rewrite.Graph

	// MainAncestors contains the ancestry of the configured main branch,
	// bounded by the history horizon.
	MainAncestors map[gitrepo.CommitID]bool

	// BranchReachable contains commits reachable from any branch other
	// than main (local or remote-tracking), bounded by the horizon. HEAD
	// ancestry deliberately does not count: being below the current
	// checkout must not resurrect shared history.
	BranchReachable map[gitrepo.CommitID]bool

	// HeadAncestors contains the ancestry of the current HEAD, bounded
	// by the horizon.
	HeadAncestors map[gitrepo.CommitID]bool

	// ObservedHeads contains commits the event log still considers
	// active in-progress heads.
	ObservedHeads map[gitrepo.CommitID]bool

	// Exists reports whether the commit object is still present.
	Exists func(gitrepo.CommitID) bool
}

// Resolver evaluates verdicts, memoized per commit. Not safe for
// concurrent use; each invocation builds its own.
type Resolver struct {
	ctx     Context
	memo    map[gitrepo.CommitID]Verdict
	pending map[gitrepo.CommitID]bool
}

// New creates a Resolver over a fixed context snapshot.
func New(ctx Context) *Resolver {
	return &Resolver{
		ctx:     ctx,
		memo:    make(map[gitrepo.CommitID]Verdict),
		pending: make(map[gitrepo.CommitID]bool),
	}
}

// Verdict resolves the visibility of one commit. Rules in order:
//
//  1. A main-branch ancestor that is not HEAD and not reachable from any
//     other branch is public: suppressed regardless of hide/unhide state.
//  2. A commit whose latest hide/unhide record is a hide stays hidden.
//     Hide is dominant even for commits reachable only from HEAD.
//  3. An obsolete commit whose surviving successor is visible is hidden in
//     its favor.
//  4. A commit claimed by no ref, no observed head, or whose object is
//     gone, is unreachable.
//  5. Everything else is visible.
func (r *Resolver) Verdict(id gitrepo.CommitID) Verdict {
	if v, ok := r.memo[id]; ok {
		return v
	}
	if r.pending[id] {
		// Rewrite data produced a successor loop. Treat the in-progress
		// commit as not visible so the chain settles instead of spinning.
		return Verdict{Reason: Unreachable}
	}
	r.pending[id] = true
	v := r.resolve(id)
	delete(r.pending, id)
	r.memo[id] = v
	return v
}

func (r *Resolver) resolve(id gitrepo.CommitID) Verdict {
	if r.isPublic(id) {
		return Verdict{Reason: Public}
	}

	if r.ctx.Hidden[id] {
		return Verdict{Reason: ManuallyHidden}
	}

	if successor := r.ctx.Rewrites.ResolveLatest(id); successor != id {
		if r.exists(successor) && r.Verdict(successor).Reason == Visible {
			return Verdict{Reason: Superseded, Successor: successor}
		}
	}

	if !r.exists(id) {
		return Verdict{Reason: Unreachable}
	}
	if !r.ctx.MainAncestors[id] && !r.ctx.BranchReachable[id] && !r.ctx.HeadAncestors[id] && !r.ctx.ObservedHeads[id] {
		return Verdict{Reason: Unreachable}
	}

	return Verdict{Reason: Visible}
}

// isPublic reports whether id is shared history: a main-branch ancestor
// with no private claim on it.
func (r *Resolver) isPublic(id gitrepo.CommitID) bool {
	return r.ctx.MainAncestors[id] && id != r.ctx.Head && !r.ctx.BranchReachable[id]
}

func (r *Resolver) exists(id gitrepo.CommitID) bool {
	if r.ctx.Exists == nil {
		return true
	}
	return r.ctx.Exists(id)
}

// HiddenRecords folds hide/unhide events into last-write-wins state.
// Every commit with any record appears in the result; the value reports
// whether the latest record is a hide.
func HiddenRecords(events []eventlog.Stored) map[gitrepo.CommitID]bool {
	records := make(map[gitrepo.CommitID]bool)
	for _, stored := range events {
		switch e := stored.Event.(type) {
		case eventlog.CommitHidden:
			records[e.Commit] = true
		case eventlog.CommitUnhidden:
			records[e.Commit] = false
		case eventlog.CommitCreated, eventlog.CommitRewritten, eventlog.RefUpdated:
			// Not a visibility record.
		}
	}
	return records
}

// ObservedHeads folds the log into the set of commits still considered
// active in-progress heads: created or rewritten-to commits survive;
// rewriting a commit away deactivates it; ref updates keep their targets
// active.
func ObservedHeads(events []eventlog.Stored) map[gitrepo.CommitID]bool {
	heads := make(map[gitrepo.CommitID]bool)
	for _, stored := range events {
		switch e := stored.Event.(type) {
		case eventlog.CommitCreated:
			if !e.Commit.IsZero() {
				heads[e.Commit] = true
			}
		case eventlog.CommitRewritten:
			delete(heads, e.Old)
			if !e.New.IsZero() {
				heads[e.New] = true
			}
		case eventlog.RefUpdated:
			if !e.New.IsZero() {
				heads[e.New] = true
			}
		case eventlog.CommitHidden, eventlog.CommitUnhidden:
			// Hide state is tracked separately.
		}
	}
	return heads
}
