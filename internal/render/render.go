// Package render lays out an annotated commit graph as deterministic text.
// The output is a byte-exact contract: glyphs, sibling order, and
// annotation text are breaking-change surfaces.
//
// Glyphs: "@" marks HEAD, "O" a visible commit, "x" a hidden one (hidden
// rows appear only when the graph was built with hidden commits
// foregrounded). Connector rows thread parents to children: "|" links a
// direct parent/child pair, "|\" opens a sibling lineage, ":" stands for
// an elided run of uninteresting public commits or a break between
// disconnected components.
package render

import (
	"strings"

	"github.com/sprigdev/sprig/internal/gitrepo"
	"github.com/sprigdev/sprig/internal/graph"
	"github.com/sprigdev/sprig/internal/visibility"
)

// Smartlog renders the graph. Output ends with a newline when any row was
// produced; an empty graph renders as the empty string.
func Smartlog(g *graph.Graph) string {
	r := &renderer{
		graph:   g,
		visits:  make(map[gitrepo.CommitID]int),
		parents: make(map[gitrepo.CommitID]int),
	}

	// A merge commit is rendered once per incoming lineage; its own
	// descendants render only under the last lineage.
	for id, node := range g.Nodes {
		count := 0
		for _, parent := range node.Parents {
			if _, ok := g.Nodes[parent]; ok {
				count++
			}
		}
		r.parents[id] = count
	}

	lines := r.render()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

type renderer struct {
	graph   *graph.Graph
	visits  map[gitrepo.CommitID]int
	parents map[gitrepo.CommitID]int
}

func (r *renderer) render() []string {
	g := r.graph
	var lines []string

	anchors := g.Anchors
	if len(anchors) > 0 {
		if first := g.Nodes[anchors[0]]; len(first.Parents) > 0 {
			lines = append(lines, ":")
		}
	}

	isAnchor := make(map[gitrepo.CommitID]bool, len(anchors))
	for _, a := range anchors {
		isAnchor[a] = true
	}

	for i, a := range anchors {
		lines = append(lines, r.row(a))

		var drafts []gitrepo.CommitID
		for _, child := range g.Children(a) {
			if !isAnchor[child] {
				drafts = append(drafts, child)
			}
		}

		if i == len(anchors)-1 {
			// Spine ends here: the newest draft lineage continues in the
			// anchor's own column, earlier ones fork off.
			for j, child := range drafts {
				if j < len(drafts)-1 {
					lines = append(lines, `|\`)
					lines = append(lines, prefixed("| ", r.stack(child))...)
				} else {
					lines = append(lines, "|")
					lines = append(lines, r.stack(child)...)
				}
			}
			continue
		}

		// Spine continues: every draft lineage forks off. The vertical
		// column shows ":" when the link to the next anchor elides
		// interior public commits.
		next := g.Nodes[anchors[i+1]]
		spine := ":"
		for _, parent := range next.Parents {
			if parent == a {
				spine = "|"
				break
			}
		}
		for _, child := range drafts {
			lines = append(lines, `|\`)
			lines = append(lines, prefixed(spine+" ", r.stack(child))...)
		}
		lines = append(lines, spine)
	}

	// Components with no path to the spine render after it, separated by
	// an elision row since no edge can be drawn between them.
	for _, root := range g.OrphanRoots {
		if len(lines) > 0 || len(g.Nodes[root].Parents) > 0 {
			lines = append(lines, ":")
		}
		lines = append(lines, r.stack(root)...)
	}

	return lines
}

// stack renders one commit and its descendant lineages, column-relative.
func (r *renderer) stack(id gitrepo.CommitID) []string {
	lines := []string{r.row(id)}

	r.visits[id]++
	if r.visits[id] < r.parents[id] {
		// A merge seen from an earlier lineage: the row stands for the
		// whole merge here, its descendants render under the last
		// lineage into it.
		return lines
	}
	if r.visits[id] > max(r.parents[id], 1) {
		// Defensive: a cycle in supposedly acyclic data. Stop rather
		// than recurse forever.
		return lines
	}

	children := r.graph.Children(id)
	for i, child := range children {
		if i < len(children)-1 {
			lines = append(lines, `|\`)
			lines = append(lines, prefixed("| ", r.stack(child))...)
		} else {
			lines = append(lines, "|")
			lines = append(lines, r.stack(child)...)
		}
	}
	return lines
}

// row formats one node: glyph, short id, suppression annotation, branch
// annotations, summary.
func (r *renderer) row(id gitrepo.CommitID) string {
	node := r.graph.Nodes[id]

	glyph := "x"
	switch {
	case node.IsHead:
		glyph = "@"
	case node.Verdict.Reason == visibility.Visible,
		node.Verdict.Reason == visibility.Public,
		node.IsMainAncestor:
		glyph = "O"
	}

	parts := []string{glyph, node.ID.Short()}

	switch node.Verdict.Reason {
	case visibility.ManuallyHidden:
		parts = append(parts, "(manually hidden)")
	case visibility.Superseded:
		parts = append(parts, "(rewritten as "+node.Verdict.Successor.Short()+")")
	case visibility.Visible, visibility.Public, visibility.Unreachable:
		// No suppression annotation.
	}

	if len(node.Branches) > 0 {
		names := make([]string, len(node.Branches))
		for i, ref := range node.Branches {
			switch {
			case ref.IsCurrent:
				names[i] = "> " + ref.Name
			case ref.IsRemote:
				names[i] = "remote " + ref.Name
			default:
				names[i] = ref.Name
			}
		}
		parts = append(parts, "("+strings.Join(names, ", ")+")")
	}

	if node.Summary != "" {
		parts = append(parts, node.Summary)
	}
	return strings.Join(parts, " ")
}

func prefixed(prefix string, lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = prefix + line
	}
	return out
}
