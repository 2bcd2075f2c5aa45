package visibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
	"github.com/sprigdev/sprig/internal/rewrite"
)

func idSet(ids ...gitrepo.CommitID) map[gitrepo.CommitID]bool {
	set := make(map[gitrepo.CommitID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func resolverWith(ctx Context) *Resolver {
	if ctx.Rewrites == nil {
		ctx.Rewrites = rewrite.Build(nil)
	}
	return New(ctx)
}

func TestVerdict_PublicSuppressesMainAncestry(t *testing.T) {
	r := resolverWith(Context{
		Head:          "tip",
		MainAncestors: idSet("tip", "mid", "base"),
		ObservedHeads: idSet("tip", "mid", "base"),
	})

	// Interior main commits are shared history.
	assert.Equal(t, Public, r.Verdict("mid").Reason)
	assert.Equal(t, Public, r.Verdict("base").Reason)

	// The checked-out commit is never public.
	assert.Equal(t, Visible, r.Verdict("tip").Reason)
}

func TestVerdict_BranchClaimOverridesPublic(t *testing.T) {
	r := resolverWith(Context{
		Head:            "tip",
		MainAncestors:   idSet("tip", "mid"),
		BranchReachable: idSet("mid"),
	})

	// A non-main branch on a main ancestor keeps it foregroundable.
	assert.Equal(t, Visible, r.Verdict("mid").Reason)
}

func TestVerdict_HeadAncestryDoesNotResurrectPublic(t *testing.T) {
	// HEAD sits on the main tip; everything below it is in HEAD ancestry
	// but still shared history.
	r := resolverWith(Context{
		Head:          "tip",
		MainAncestors: idSet("tip", "mid"),
		HeadAncestors: idSet("tip", "mid"),
	})

	assert.Equal(t, Public, r.Verdict("mid").Reason)
}

func TestVerdict_HideIsDominant(t *testing.T) {
	r := resolverWith(Context{
		Head:          "head",
		Hidden:        map[gitrepo.CommitID]bool{"draft": true},
		HeadAncestors: idSet("head", "draft"),
		ObservedHeads: idSet("draft"),
	})

	// Hidden even though HEAD ancestry reaches it.
	assert.Equal(t, ManuallyHidden, r.Verdict("draft").Reason)
}

func TestVerdict_UnhideRestoresVisibility(t *testing.T) {
	r := resolverWith(Context{
		Hidden:        map[gitrepo.CommitID]bool{"draft": false},
		ObservedHeads: idSet("draft"),
	})

	assert.Equal(t, Visible, r.Verdict("draft").Reason)
}

func TestVerdict_SupersededByVisibleSuccessor(t *testing.T) {
	events := []eventlog.Stored{
		{Event: eventlog.CommitRewritten{Old: "v1", New: "v2", Time: time.Unix(1, 0)}},
		{Event: eventlog.CommitRewritten{Old: "v2", New: "v3", Time: time.Unix(2, 0)}},
	}
	r := resolverWith(Context{
		Rewrites:      rewrite.Build(events),
		ObservedHeads: idSet("v3"),
	})

	v := r.Verdict("v1")
	assert.Equal(t, Superseded, v.Reason)
	assert.Equal(t, gitrepo.CommitID("v3"), v.Successor)

	v = r.Verdict("v2")
	assert.Equal(t, Superseded, v.Reason)
	assert.Equal(t, gitrepo.CommitID("v3"), v.Successor)

	assert.Equal(t, Visible, r.Verdict("v3").Reason)
}

func TestVerdict_HiddenSuccessorKeepsPredecessorUnclaimed(t *testing.T) {
	events := []eventlog.Stored{
		{Event: eventlog.CommitRewritten{Old: "v1", New: "v2", Time: time.Unix(1, 0)}},
	}
	r := resolverWith(Context{
		Rewrites:      rewrite.Build(events),
		Hidden:        map[gitrepo.CommitID]bool{"v2": true},
		ObservedHeads: idSet("v1", "v2"),
	})

	// The successor is itself hidden, so supersession does not apply;
	// the predecessor falls through to its own reachability.
	assert.Equal(t, ManuallyHidden, r.Verdict("v2").Reason)
	assert.Equal(t, Visible, r.Verdict("v1").Reason)
}

func TestVerdict_MissingObjectIsUnreachable(t *testing.T) {
	r := resolverWith(Context{
		ObservedHeads: idSet("gone"),
		Exists:        func(id gitrepo.CommitID) bool { return id != "gone" },
	})

	assert.Equal(t, Unreachable, r.Verdict("gone").Reason)
}

func TestVerdict_UnclaimedIsUnreachable(t *testing.T) {
	r := resolverWith(Context{})
	assert.Equal(t, Unreachable, r.Verdict("stray").Reason)
}

func TestVerdict_RewriteCycleSettles(t *testing.T) {
	events := []eventlog.Stored{
		{Event: eventlog.CommitRewritten{Old: "a", New: "b", Time: time.Unix(1, 0)}},
		{Event: eventlog.CommitRewritten{Old: "b", New: "a", Time: time.Unix(2, 0)}},
	}
	r := resolverWith(Context{
		Rewrites:      rewrite.Build(events),
		ObservedHeads: idSet("a", "b"),
	})

	// Malformed cycle data must terminate, not hang; both sides resolve
	// to themselves and stay visible.
	assert.Equal(t, Visible, r.Verdict("a").Reason)
	assert.Equal(t, Visible, r.Verdict("b").Reason)
}

func TestHiddenRecords_LastWriteWins(t *testing.T) {
	at := time.Unix(1, 0)
	records := HiddenRecords([]eventlog.Stored{
		{Event: eventlog.CommitHidden{Commit: "a", Time: at}},
		{Event: eventlog.CommitHidden{Commit: "b", Time: at}},
		{Event: eventlog.CommitUnhidden{Commit: "a", Time: at}},
	})

	assert.Equal(t, map[gitrepo.CommitID]bool{"a": false, "b": true}, records)
}

func TestObservedHeads_RewriteDeactivatesOld(t *testing.T) {
	at := time.Unix(1, 0)
	heads := ObservedHeads([]eventlog.Stored{
		{Event: eventlog.CommitCreated{Commit: "a", Time: at}},
		{Event: eventlog.CommitCreated{Commit: "b", Time: at}},
		{Event: eventlog.CommitRewritten{Old: "a", New: "c", Time: at}},
		{Event: eventlog.RefUpdated{Ref: "HEAD", Old: "b", New: "d", Time: at}},
	})

	assert.Equal(t, idSet("b", "c", "d"), heads)
}

func TestObservedHeads_DropRemovesWithoutReplacement(t *testing.T) {
	at := time.Unix(1, 0)
	heads := ObservedHeads([]eventlog.Stored{
		{Event: eventlog.CommitCreated{Commit: "a", Time: at}},
		{Event: eventlog.CommitRewritten{Old: "a", New: "", Time: at}},
	})

	assert.Empty(t, heads)
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "visible", Visible.String())
	assert.Equal(t, "manually hidden", ManuallyHidden.String())
	assert.Equal(t, "superseded", Superseded.String())
	assert.Equal(t, "public", Public.String())
	assert.Equal(t, "unreachable", Unreachable.String())
}
