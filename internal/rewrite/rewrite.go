// Package rewrite derives the superseded-by mapping from rewrite events:
// which commits were replaced by amends and rebases, and what each one
// ultimately became.
package rewrite

import (
	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
)

// Graph maps each rewritten commit to its direct successor. An entry with
// an empty successor means the commit was dropped entirely.
type Graph struct {
	next map[gitrepo.CommitID]gitrepo.CommitID
}

// Build folds the rewrite events out of the log, in id order. The last
// rewrite event per old id wins.
func Build(events []eventlog.Stored) *Graph {
	g := &Graph{next: make(map[gitrepo.CommitID]gitrepo.CommitID)}
	for _, stored := range events {
		if e, ok := stored.Event.(eventlog.CommitRewritten); ok && !e.Old.IsZero() {
			g.next[e.Old] = e.New
		}
	}
	return g
}

// ResolveLatest follows rewrite edges from id until a commit with no
// outgoing edge. Chains across successive amends resolve to the newest
// commit; a dropped commit resolves to the last id before the drop.
//
// Genuine cycles are malformed upstream data, not valid history: a
// detected cycle resolves to id itself rather than hanging. Runs in time
// proportional to chain length.
func (g *Graph) ResolveLatest(id gitrepo.CommitID) gitrepo.CommitID {
	visited := map[gitrepo.CommitID]bool{id: true}
	current := id
	for {
		next, ok := g.next[current]
		if !ok {
			return current
		}
		if next.IsZero() {
			// Dropped; the chain ends here.
			return current
		}
		if visited[next] {
			return id
		}
		visited[next] = true
		current = next
	}
}

// IsObsolete reports whether id was superseded by a rewrite that resolved
// to a different, still-existing commit. Supersession propagates through
// the whole chain; a chain that ends in a drop leaves the original
// non-obsolete (there is nothing to show instead).
func (g *Graph) IsObsolete(id gitrepo.CommitID) bool {
	return g.ResolveLatest(id) != id
}

// Old returns every commit id with an outgoing rewrite edge, i.e. every
// commit some rewrite superseded.
func (g *Graph) Old() []gitrepo.CommitID {
	ids := make([]gitrepo.CommitID, 0, len(g.next))
	for id := range g.next {
		ids = append(ids, id)
	}
	return ids
}
