// Package graph assembles the bounded subgraph of commits the smartlog
// renders: in-progress work foregrounded by the event log and refs, pinned
// to the main-branch ancestry it grew out of.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
	"github.com/sprigdev/sprig/internal/rewrite"
	"github.com/sprigdev/sprig/internal/visibility"
)

// BranchRef is one branch name attached to a node.
type BranchRef struct {
	Name      string
	IsRemote  bool
	IsCurrent bool
}

// Node is one rendered commit with its annotations.
type Node struct {
	ID      gitrepo.CommitID
	Parents []gitrepo.CommitID
	Summary string
	Time    time.Time

	Branches       []BranchRef
	IsHead         bool
	IsMainAncestor bool
	Verdict        visibility.Verdict
}

// Graph is the assembled render input. Rebuilt fresh on every invocation;
// never persisted.
type Graph struct {
	Nodes map[gitrepo.CommitID]*Node
	Head  gitrepo.CommitID

	// Anchors are the included main-ancestry commits, ordered ancestor
	// first. They form the rendered spine; runs of uninteresting public
	// commits between them are elided.
	Anchors []gitrepo.CommitID

	// OrphanRoots are the bases of components disconnected from the main
	// ancestry (orphaned roots, horizon-truncated stacks), in render
	// order.
	OrphanRoots []gitrepo.CommitID

	children map[gitrepo.CommitID][]gitrepo.CommitID
}

// Children returns the included children of id, sorted ascending by
// (commit time, commit id) so sibling order is deterministic.
func (g *Graph) Children(id gitrepo.CommitID) []gitrepo.CommitID {
	return g.children[id]
}

// Params configures one build.
type Params struct {
	Repo   gitrepo.Repository
	Events []eventlog.Stored

	MainBranch string
	Horizon    int

	ShowHidden   bool
	BranchesOnly bool
}

// Build assembles the graph from a snapshot of the log and the repository.
func Build(p Params) (*Graph, error) {
	if p.Horizon <= 0 {
		p.Horizon = gitrepo.DefaultHorizon
	}

	b := &builder{
		params:  p,
		commits: make(map[gitrepo.CommitID]*gitrepo.Commit),
	}
	return b.build()
}

type builder struct {
	params  Params
	commits map[gitrepo.CommitID]*gitrepo.Commit
}

// commit reads a commit through a per-build cache. Missing objects are
// cached as nil rather than treated as errors; the caller decides whether
// absence matters.
func (b *builder) commit(id gitrepo.CommitID) *gitrepo.Commit {
	if id.IsZero() {
		return nil
	}
	if c, ok := b.commits[id]; ok {
		return c
	}
	c, err := b.params.Repo.Commit(id)
	if err != nil {
		c = nil
	}
	b.commits[id] = c
	return c
}

// ancestry walks parent links breadth-first from the given tips, visiting
// at most horizon commits. Returns the visited order (descendants first).
func (b *builder) ancestry(tips []gitrepo.CommitID) []gitrepo.CommitID {
	seen := make(map[gitrepo.CommitID]bool)
	var order []gitrepo.CommitID
	var queue []gitrepo.CommitID

	for _, tip := range tips {
		if !tip.IsZero() && !seen[tip] {
			seen[tip] = true
			queue = append(queue, tip)
		}
	}
	for len(queue) > 0 && len(order) < b.params.Horizon {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		c := b.commit(id)
		if c == nil {
			continue
		}
		for _, parent := range c.Parents {
			if !seen[parent] {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return order
}

func (b *builder) build() (*Graph, error) {
	repo := b.params.Repo

	head, headBranch, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	branches, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	mainTip := b.resolveMainTip(branches)

	// Derived state from the event log.
	rewrites := rewrite.Build(b.params.Events)
	hiddenRecords := visibility.HiddenRecords(b.params.Events)
	observed := visibility.ObservedHeads(b.params.Events)

	// Bounded reachability snapshots.
	mainOrder := b.ancestry([]gitrepo.CommitID{mainTip})
	mainAncestors := make(map[gitrepo.CommitID]bool, len(mainOrder))
	mainPos := make(map[gitrepo.CommitID]int, len(mainOrder))
	for i, id := range mainOrder {
		mainAncestors[id] = true
		mainPos[id] = i
	}

	var branchTips []gitrepo.CommitID
	for _, br := range branches {
		if b.isMainBranch(br) {
			continue
		}
		branchTips = append(branchTips, br.Target)
	}
	branchReachable := make(map[gitrepo.CommitID]bool)
	for _, id := range b.ancestry(branchTips) {
		branchReachable[id] = true
	}
	headAncestors := make(map[gitrepo.CommitID]bool)
	for _, id := range b.ancestry([]gitrepo.CommitID{head}) {
		headAncestors[id] = true
	}

	resolver := visibility.New(visibility.Context{
		Head:            head,
		Hidden:          hiddenRecords,
		Rewrites:        rewrites,
		MainAncestors:   mainAncestors,
		BranchReachable: branchReachable,
		HeadAncestors:   headAncestors,
		ObservedHeads:   observed,
		Exists:          func(id gitrepo.CommitID) bool { return b.commit(id) != nil },
	})

	// Candidate heads: everything the log or the refs claim, plus (when
	// showing hidden) everything with a hide/unhide record and every
	// rewritten-away commit.
	candidates := make(map[gitrepo.CommitID]bool)
	for id := range observed {
		candidates[id] = true
	}
	for _, br := range branches {
		candidates[br.Target] = true
	}
	if !head.IsZero() {
		candidates[head] = true
	}
	if b.params.ShowHidden {
		for id := range hiddenRecords {
			candidates[id] = true
		}
		for _, id := range rewrites.Old() {
			candidates[id] = true
		}
	}

	branchTargets := make(map[gitrepo.CommitID]bool)
	for _, br := range branches {
		branchTargets[br.Target] = true
	}

	// Foregrounded heads: the commits the walk starts from.
	var foreground []gitrepo.CommitID
	for id := range candidates {
		if b.commit(id) == nil {
			continue
		}
		if b.params.BranchesOnly && !branchTargets[id] && id != head {
			continue
		}
		v := resolver.Verdict(id)
		switch v.Reason {
		case visibility.Visible:
			foreground = append(foreground, id)
		case visibility.Public:
			// Public commits surface only when explicitly requested and
			// only when the user touched their hide state; they then
			// join the spine as main-ancestry rows.
			if _, hasRecord := hiddenRecords[id]; hasRecord && b.params.ShowHidden {
				foreground = append(foreground, id)
			}
		default:
			if b.params.ShowHidden {
				foreground = append(foreground, id)
			}
		}
	}
	if !head.IsZero() {
		foreground = append(foreground, head)
	}
	sort.Slice(foreground, func(i, j int) bool { return foreground[i] < foreground[j] })

	// Walk each foreground head down to main ancestry, a root, or the
	// horizon.
	included := make(map[gitrepo.CommitID]bool)
	anchors := make(map[gitrepo.CommitID]bool)
	for _, headID := range foreground {
		b.walk(headID, mainAncestors, included, anchors)
	}
	if !mainTip.IsZero() {
		anchors[mainTip] = true
	}

	g := &Graph{
		Nodes:    make(map[gitrepo.CommitID]*Node),
		Head:     head,
		children: make(map[gitrepo.CommitID][]gitrepo.CommitID),
	}

	// Materialize nodes.
	branchesByTarget := make(map[gitrepo.CommitID][]BranchRef)
	for _, br := range branches {
		branchesByTarget[br.Target] = append(branchesByTarget[br.Target], BranchRef{
			Name:      br.Name,
			IsRemote:  br.IsRemote,
			IsCurrent: !br.IsRemote && br.Name == headBranch && br.Target == head,
		})
	}
	for id := range anchors {
		included[id] = true
	}
	for id := range included {
		c := b.commit(id)
		if c == nil {
			continue
		}
		refs := branchesByTarget[id]
		sortBranchRefs(refs)
		g.Nodes[id] = &Node{
			ID:             id,
			Parents:        c.Parents,
			Summary:        c.Summary,
			Time:           c.Time,
			Branches:       refs,
			IsHead:         id == head,
			IsMainAncestor: mainAncestors[id],
			Verdict:        resolver.Verdict(id),
		}
	}

	// Adjacency between included nodes.
	for id, node := range g.Nodes {
		for _, parent := range node.Parents {
			if _, ok := g.Nodes[parent]; ok {
				g.children[parent] = append(g.children[parent], id)
			}
		}
	}
	for parent := range g.children {
		b.sortSiblings(g, g.children[parent])
	}

	// Spine: included anchors in ancestor-first order.
	for id := range anchors {
		if _, ok := g.Nodes[id]; ok {
			g.Anchors = append(g.Anchors, id)
		}
	}
	sort.Slice(g.Anchors, func(i, j int) bool {
		// mainOrder is descendants-first; render wants ancestors first.
		return mainPos[g.Anchors[i]] > mainPos[g.Anchors[j]]
	})

	// Components that never attached to the spine.
	anchorReach := make(map[gitrepo.CommitID]bool)
	for _, a := range g.Anchors {
		markReachable(g, a, anchorReach)
	}
	var orphans []gitrepo.CommitID
	for id, node := range g.Nodes {
		if anchorReach[id] {
			continue
		}
		hasIncludedParent := false
		for _, parent := range node.Parents {
			if _, ok := g.Nodes[parent]; ok {
				hasIncludedParent = true
				break
			}
		}
		if !hasIncludedParent {
			orphans = append(orphans, id)
		}
	}
	b.sortSiblings(g, orphans)
	g.OrphanRoots = orphans

	return g, nil
}

// walk includes headID and its ancestors until main ancestry (recording
// the anchor it attaches to), an already-included commit, a root, or the
// horizon.
func (b *builder) walk(headID gitrepo.CommitID, mainAncestors, included, anchors map[gitrepo.CommitID]bool) {
	if mainAncestors[headID] {
		anchors[headID] = true
		return
	}
	queue := []gitrepo.CommitID{headID}
	steps := 0
	for len(queue) > 0 && steps < b.params.Horizon {
		id := queue[0]
		queue = queue[1:]
		if included[id] {
			continue
		}
		included[id] = true
		steps++
		c := b.commit(id)
		if c == nil {
			continue
		}
		for _, parent := range c.Parents {
			if mainAncestors[parent] {
				anchors[parent] = true
				continue
			}
			if !included[parent] {
				queue = append(queue, parent)
			}
		}
	}
}

// sortSiblings orders ids ascending by (commit time, commit id).
func (b *builder) sortSiblings(g *Graph, ids []gitrepo.CommitID) {
	sort.Slice(ids, func(i, j int) bool {
		ni, nj := g.Nodes[ids[i]], g.Nodes[ids[j]]
		if ni != nil && nj != nil && !ni.Time.Equal(nj.Time) {
			return ni.Time.Before(nj.Time)
		}
		return ids[i] < ids[j]
	})
}

// sortBranchRefs orders branch annotations: the checked-out branch first,
// then other local branches by name, then remote-tracking branches by name.
func sortBranchRefs(refs []BranchRef) {
	sort.Slice(refs, func(i, j int) bool {
		ri, rj := refs[i], refs[j]
		if ri.IsCurrent != rj.IsCurrent {
			return ri.IsCurrent
		}
		if ri.IsRemote != rj.IsRemote {
			return rj.IsRemote
		}
		return ri.Name < rj.Name
	})
}

func markReachable(g *Graph, from gitrepo.CommitID, seen map[gitrepo.CommitID]bool) {
	if seen[from] {
		return
	}
	seen[from] = true
	for _, child := range g.children[from] {
		markReachable(g, child, seen)
	}
}

// resolveMainTip finds the configured main branch's target: a local branch
// first, then a remote-tracking branch, then any resolvable name. An
// unborn main branch yields an empty tip.
func (b *builder) resolveMainTip(branches []gitrepo.Branch) gitrepo.CommitID {
	name := b.params.MainBranch
	for _, br := range branches {
		if !br.IsRemote && br.Name == name {
			return br.Target
		}
	}
	for _, br := range branches {
		if br.IsRemote && br.Name == name {
			return br.Target
		}
	}
	if id, err := b.params.Repo.Resolve(name); err == nil {
		return id
	}
	return ""
}

// isMainBranch reports whether br is the configured main branch itself.
// Its remote counterpart (origin/<main> when main is local) also counts as
// shared, not private, history.
func (b *builder) isMainBranch(br gitrepo.Branch) bool {
	if br.Name == b.params.MainBranch {
		return true
	}
	return br.IsRemote && strings.HasSuffix(br.Name, "/"+b.params.MainBranch)
}
