package rewrite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
)

func rewritten(old, new gitrepo.CommitID) eventlog.Stored {
	return eventlog.Stored{Event: eventlog.CommitRewritten{Old: old, New: new, Time: time.Unix(1, 0)}}
}

func TestResolveLatest_FollowsChain(t *testing.T) {
	g := Build([]eventlog.Stored{
		rewritten("a", "b"),
		rewritten("b", "c"),
	})

	assert.Equal(t, gitrepo.CommitID("c"), g.ResolveLatest("a"))
	assert.Equal(t, gitrepo.CommitID("c"), g.ResolveLatest("b"))
	assert.Equal(t, gitrepo.CommitID("c"), g.ResolveLatest("c"))

	assert.True(t, g.IsObsolete("a"))
	assert.True(t, g.IsObsolete("b"))
	assert.False(t, g.IsObsolete("c"))
}

func TestResolveLatest_UnknownIDIsItself(t *testing.T) {
	g := Build(nil)
	assert.Equal(t, gitrepo.CommitID("a"), g.ResolveLatest("a"))
	assert.False(t, g.IsObsolete("a"))
}

func TestBuild_LastRewriteWins(t *testing.T) {
	g := Build([]eventlog.Stored{
		rewritten("a", "b"),
		rewritten("a", "c"),
	})

	assert.Equal(t, gitrepo.CommitID("c"), g.ResolveLatest("a"))
}

func TestResolveLatest_DropEndsChain(t *testing.T) {
	g := Build([]eventlog.Stored{
		rewritten("a", "b"),
		rewritten("b", ""),
	})

	// A chain ending in a drop resolves to the last surviving id.
	assert.Equal(t, gitrepo.CommitID("b"), g.ResolveLatest("a"))
	assert.True(t, g.IsObsolete("a"))

	// A directly dropped commit has nothing to show instead.
	assert.Equal(t, gitrepo.CommitID("b"), g.ResolveLatest("b"))
	assert.False(t, g.IsObsolete("b"))
}

func TestResolveLatest_CycleResolvesToSelf(t *testing.T) {
	g := Build([]eventlog.Stored{
		rewritten("a", "b"),
		rewritten("b", "a"),
	})

	assert.Equal(t, gitrepo.CommitID("a"), g.ResolveLatest("a"))
	assert.Equal(t, gitrepo.CommitID("b"), g.ResolveLatest("b"))
	assert.False(t, g.IsObsolete("a"))
	assert.False(t, g.IsObsolete("b"))
}

func TestOld_ListsRewrittenAwayCommits(t *testing.T) {
	g := Build([]eventlog.Stored{
		rewritten("a", "b"),
		rewritten("c", "d"),
		{Event: eventlog.CommitCreated{Commit: "e", Time: time.Unix(1, 0)}},
	})

	assert.ElementsMatch(t, []gitrepo.CommitID{"a", "c"}, g.Old())
}
