package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
	"github.com/sprigdev/sprig/internal/testutil"
	"github.com/sprigdev/sprig/internal/visibility"
)

const (
	idM1 = "aaaaaaaa00000000000000000000000000000000"
	idM2 = "bbbbbbbb00000000000000000000000000000000"
	idM3 = "cccccccc00000000000000000000000000000000"
	idD1 = "dddddddd00000000000000000000000000000000"
	idD2 = "eeeeeeee00000000000000000000000000000000"
)

func at(sec int) time.Time { return time.Unix(int64(sec), 0) }

func created(id gitrepo.CommitID, sec int) eventlog.Stored {
	return eventlog.Stored{Event: eventlog.CommitCreated{Commit: id, Time: at(sec)}}
}

func hidden(id gitrepo.CommitID, sec int) eventlog.Stored {
	return eventlog.Stored{Event: eventlog.CommitHidden{Commit: id, Time: at(sec)}}
}

// mainline builds master = m1 <- m2 <- m3, HEAD attached to master.
func mainline() *testutil.Repo {
	repo := testutil.NewRepo()
	repo.AddCommit(idM1, nil, "one", at(1))
	repo.AddCommit(idM2, []gitrepo.CommitID{idM1}, "two", at(2))
	repo.AddCommit(idM3, []gitrepo.CommitID{idM2}, "three", at(3))
	repo.SetBranch("master", idM3, false)
	repo.SetHead("master")
	return repo
}

func TestBuild_AnchorsAncestorFirstWithElision(t *testing.T) {
	repo := mainline()
	// Draft off the oldest main commit; HEAD stays on master.
	repo.AddCommit(idD1, []gitrepo.CommitID{idM1}, "draft", at(4))

	g, err := Build(Params{
		Repo:       repo,
		Events:     []eventlog.Stored{created(idD1, 4)},
		MainBranch: "master",
	})
	require.NoError(t, err)

	// The draft's attachment point and the main tip anchor the spine,
	// oldest first; the interior commit m2 is elided entirely.
	assert.Equal(t, []gitrepo.CommitID{idM1, idM3}, g.Anchors)
	assert.NotContains(t, g.Nodes, gitrepo.CommitID(idM2))

	require.Contains(t, g.Nodes, gitrepo.CommitID(idD1))
	assert.Equal(t, visibility.Visible, g.Nodes[idD1].Verdict.Reason)
	assert.Equal(t, []gitrepo.CommitID{idD1}, g.Children(idM1))
}

func TestBuild_HiddenExcludedByDefault(t *testing.T) {
	repo := mainline()
	repo.AddCommit(idD1, []gitrepo.CommitID{idM3}, "draft", at(4))

	events := []eventlog.Stored{created(idD1, 4), hidden(idD1, 5)}

	g, err := Build(Params{Repo: repo, Events: events, MainBranch: "master"})
	require.NoError(t, err)
	assert.NotContains(t, g.Nodes, gitrepo.CommitID(idD1))

	// --hidden includes it, with the verdict attached.
	g, err = Build(Params{Repo: repo, Events: events, MainBranch: "master", ShowHidden: true})
	require.NoError(t, err)
	require.Contains(t, g.Nodes, gitrepo.CommitID(idD1))
	assert.Equal(t, visibility.ManuallyHidden, g.Nodes[idD1].Verdict.Reason)
}

func TestBuild_ShowHiddenIncludesRewrittenAway(t *testing.T) {
	repo := mainline()
	repo.AddCommit(idD1, []gitrepo.CommitID{idM3}, "draft", at(4))
	repo.AddCommit(idD2, []gitrepo.CommitID{idM3}, "draft", at(5))
	repo.DetachHead(idD2)

	events := []eventlog.Stored{
		created(idD1, 4),
		created(idD2, 5),
		{Event: eventlog.CommitRewritten{Old: idD1, New: idD2, Time: at(5)}},
	}

	g, err := Build(Params{Repo: repo, Events: events, MainBranch: "master"})
	require.NoError(t, err)
	assert.NotContains(t, g.Nodes, gitrepo.CommitID(idD1))

	g, err = Build(Params{Repo: repo, Events: events, MainBranch: "master", ShowHidden: true})
	require.NoError(t, err)
	require.Contains(t, g.Nodes, gitrepo.CommitID(idD1))
	assert.Equal(t, visibility.Superseded, g.Nodes[idD1].Verdict.Reason)
	assert.Equal(t, gitrepo.CommitID(idD2), g.Nodes[idD1].Verdict.Successor)
}

func TestBuild_BranchesOnlyFiltersUnnamedDrafts(t *testing.T) {
	repo := mainline()
	repo.AddCommit(idD1, []gitrepo.CommitID{idM3}, "unnamed", at(4))
	repo.AddCommit(idD2, []gitrepo.CommitID{idM3}, "named", at(5))
	repo.SetBranch("feature", idD2, false)

	events := []eventlog.Stored{created(idD1, 4), created(idD2, 5)}

	g, err := Build(Params{Repo: repo, Events: events, MainBranch: "master", BranchesOnly: true})
	require.NoError(t, err)
	assert.NotContains(t, g.Nodes, gitrepo.CommitID(idD1))
	assert.Contains(t, g.Nodes, gitrepo.CommitID(idD2))
}

func TestBuild_RemoteMainCountsAsShared(t *testing.T) {
	repo := testutil.NewRepo()
	repo.AddCommit(idM1, nil, "one", at(1))
	repo.AddCommit(idM2, []gitrepo.CommitID{idM1}, "two", at(2))
	repo.SetBranch("master", idM2, false)
	repo.SetBranch("origin/master", idM1, true)
	repo.SetHead("master")

	g, err := Build(Params{Repo: repo, Events: nil, MainBranch: "master"})
	require.NoError(t, err)

	// origin/master must not count as a private branch claim, so m1
	// stays elided rather than anchoring with a remote annotation.
	assert.Equal(t, []gitrepo.CommitID{idM2}, g.Anchors)
	assert.NotContains(t, g.Nodes, gitrepo.CommitID(idM1))
}

func TestBuild_HeadAlwaysForegrounded(t *testing.T) {
	repo := mainline()
	// Detached on an interior main commit with no other claim.
	repo.DetachHead(idM2)

	g, err := Build(Params{Repo: repo, Events: nil, MainBranch: "master"})
	require.NoError(t, err)

	require.Contains(t, g.Nodes, gitrepo.CommitID(idM2))
	assert.True(t, g.Nodes[idM2].IsHead)
	assert.Contains(t, g.Anchors, gitrepo.CommitID(idM2))
}

func TestBuild_HorizonBoundsWalk(t *testing.T) {
	repo := testutil.NewRepo()
	chain := []gitrepo.CommitID{
		"1111111100000000000000000000000000000000",
		"2222222200000000000000000000000000000000",
		"3333333300000000000000000000000000000000",
		"4444444400000000000000000000000000000000",
		"5555555500000000000000000000000000000000",
	}
	var parents []gitrepo.CommitID
	for i, id := range chain {
		repo.AddCommit(id, parents, "c", at(i+1))
		parents = []gitrepo.CommitID{id}
	}
	repo.DetachHead(chain[4])

	g, err := Build(Params{Repo: repo, Events: nil, MainBranch: "master", Horizon: 3})
	require.NoError(t, err)

	// Only the three newest commits fit the window; the truncated stack
	// becomes a disconnected component rooted at the window's bottom.
	assert.Len(t, g.Nodes, 3)
	assert.NotContains(t, g.Nodes, chain[0])
	assert.NotContains(t, g.Nodes, chain[1])
	assert.Equal(t, []gitrepo.CommitID{chain[2]}, g.OrphanRoots)
	assert.Empty(t, g.Anchors)
}

func TestBuild_SiblingAndBranchOrdering(t *testing.T) {
	repo := mainline()
	// Older draft committed after a newer one; order must follow commit
	// time, not insertion.
	repo.AddCommit(idD2, []gitrepo.CommitID{idM3}, "later", at(6))
	repo.AddCommit(idD1, []gitrepo.CommitID{idM3}, "earlier", at(5))
	repo.SetBranch("zeta", idM3, false)
	repo.SetBranch("alpha", idM3, false)
	repo.SetBranch("origin/alpha", idM3, true)

	events := []eventlog.Stored{created(idD2, 6), created(idD1, 5)}
	g, err := Build(Params{Repo: repo, Events: events, MainBranch: "master"})
	require.NoError(t, err)

	assert.Equal(t, []gitrepo.CommitID{idD1, idD2}, g.Children(idM3))

	// Checked-out branch first, locals by name, remotes last.
	names := make([]string, 0, 4)
	for _, ref := range g.Nodes[idM3].Branches {
		names = append(names, ref.Name)
	}
	assert.Equal(t, []string{"master", "alpha", "zeta", "origin/alpha"}, names)
	assert.True(t, g.Nodes[idM3].Branches[0].IsCurrent)
}

func TestBuild_UnbornMainBranch(t *testing.T) {
	repo := testutil.NewRepo()
	repo.AddCommit(idD1, nil, "standalone", at(1))
	repo.DetachHead(idD1)

	g, err := Build(Params{Repo: repo, Events: []eventlog.Stored{created(idD1, 1)}, MainBranch: "master"})
	require.NoError(t, err)

	assert.Empty(t, g.Anchors)
	assert.Equal(t, []gitrepo.CommitID{idD1}, g.OrphanRoots)
}
