// Package khop implements bounded forward reachability walks over an
// assembled PAG, sketched in spec §1's "k-hop reachability summaries" and
// gated by the Block/Unbounded traversal distinction (spec's Glossary).
package khop

import (
	"snailtrail.dev/st2/internal/pag"
)

// Graph is a minimal adjacency view over a finished PAG: all edges whose
// source is a given node.
type Graph struct {
	outgoing map[pag.Node][]pag.Edge
}

// NewGraph builds a Graph from a flat edge list.
func NewGraph(edges []pag.Edge) *Graph {
	g := &Graph{outgoing: make(map[pag.Node][]pag.Edge)}
	for _, e := range edges {
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	}
	return g
}

// Reachable walks forward from start up to k hops, refusing to cross any
// edge whose Traverse is Block. Returns every node reached, including
// start itself.
func (g *Graph) Reachable(start pag.Node, k int) []pag.Node {
	visited := map[pag.Node]bool{start: true}
	frontier := []pag.Node{start}

	for hop := 0; hop < k && len(frontier) > 0; hop++ {
		var next []pag.Node
		for _, n := range frontier {
			for _, e := range g.outgoing[n] {
				if e.Traverse == pag.Block {
					continue
				}
				if visited[e.Destination] {
					continue
				}
				visited[e.Destination] = true
				next = append(next, e.Destination)
			}
		}
		frontier = next
	}

	out := make([]pag.Node, 0, len(visited))
	for n := range visited {
		out = append(out, n)
	}
	return out
}
