// Package simgraph groups verified clone pairs into connected components
// (C7) with a direction-optimizing (Beamer et al.) parallel BFS: each
// traversal step picks top-down or bottom-up expansion depending on how
// many edges remain unexplored, switching once the frontier's edge count
// grows large relative to the graph's remaining unvisited edges.
package simgraph

import (
	"context"
	"sort"

	"github.com/panbanda/omen/internal/clonerun"
)

// DefaultAlpha mirrors Beamer et al.'s tuning constant: bottom-up becomes
// worthwhile once frontierEdges*alpha exceeds the unvisited edge count.
const DefaultAlpha = 14

// DefaultMinParallelSize is the graph size below which a plain sequential
// scan beats the pool setup and bottom-up full-vertex scan overhead.
const DefaultMinParallelSize = 100

// Graph is an adjacency-list undirected graph over dense node indices
// 0..N-1, built once from a set of verified pairs and never mutated
// after Build returns.
type Graph struct {
	n           int
	adj         [][]int32
	degree      []int32
	totalDegree int64
}

// Build constructs a Graph over n nodes from a set of undirected edges.
// Duplicate edges collapse; self-edges are dropped.
func Build(n int, edges [][2]int) *Graph {
	g := &Graph{n: n, adj: make([][]int32, n), degree: make([]int32, n)}
	seen := make(map[[2]int32]struct{})
	for _, e := range edges {
		a, b := int32(e[0]), int32(e[1])
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		key := [2]int32{a, b}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		g.adj[a] = append(g.adj[a], b)
		g.adj[b] = append(g.adj[b], a)
	}
	for i := range g.adj {
		sort.Slice(g.adj[i], func(x, y int) bool { return g.adj[i][x] < g.adj[i][y] })
		g.degree[i] = int32(len(g.adj[i]))
		g.totalDegree += int64(len(g.adj[i]))
	}
	return g
}

// N reports the number of nodes in the graph.
func (g *Graph) N() int { return g.n }

// Neighbors returns v's adjacency list.
func (g *Graph) Neighbors(v int32) []int32 { return g.adj[v] }

// ConnectedComponents groups g's nodes using DefaultAlpha and
// DefaultMinParallelSize. Components of size 1 are discarded: an
// unmatched document is not a clone group.
func ConnectedComponents(g *Graph) [][]int32 {
	return ConnectedComponentsWithOptions(g, DefaultAlpha, DefaultMinParallelSize)
}

// ConnectedComponentsWithOptions groups g's nodes into connected
// components, same as ConnectedComponents but with the direction-switch
// threshold (alpha) and the sequential/parallel size cutoff
// (minParallelSize) exposed for tuning and for deterministic testing of
// both traversal strategies.
func ConnectedComponentsWithOptions(g *Graph, alpha, minParallelSize int) [][]int32 {
	visited := clonerun.NewAtomicBitmap(g.n)
	remaining := g.totalDegree
	var components [][]int32

	for start := int32(0); start < int32(g.n); start++ {
		if len(g.adj[start]) == 0 {
			continue // isolated node, never part of a multi-document clone group
		}
		if !visited.TestAndSet(start) {
			continue
		}
		remaining -= int64(g.degree[start])
		comp := bfsComponent(g, start, visited, &remaining, alpha, minParallelSize)
		if len(comp) > 1 {
			components = append(components, comp)
		}
	}

	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}

// bfsComponent explores one component from root, choosing top-down or
// bottom-up expansion at every level. remaining tracks the sum of
// degrees over every still-unvisited node across the whole graph (not
// just this component) and is decremented as nodes are claimed, matching
// the classic direction-optimizing BFS heuristic.
func bfsComponent(g *Graph, root int32, visited *clonerun.AtomicBitmap, remaining *int64, alpha, minParallelSize int) []int32 {
	comp := []int32{root}
	frontier := []int32{root}

	for len(frontier) > 0 {
		var next []int32
		switch {
		case g.n < minParallelSize:
			next = expandTopDownSequential(g, frontier, visited)
		case frontierEdgeCount(g, frontier)*int64(alpha) > *remaining:
			next = expandBottomUp(g, visited)
		default:
			next = clonerun.ExpandFrontier(frontier, g.Neighbors, visited.TestAndSet, 0)
		}

		for _, v := range next {
			*remaining -= int64(g.degree[v])
		}
		comp = append(comp, next...)
		frontier = next
	}

	sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
	return comp
}

func frontierEdgeCount(g *Graph, frontier []int32) int64 {
	var total int64
	for _, v := range frontier {
		total += int64(g.degree[v])
	}
	return total
}

func expandTopDownSequential(g *Graph, frontier []int32, visited *clonerun.AtomicBitmap) []int32 {
	var next []int32
	for _, v := range frontier {
		for _, n := range g.adj[v] {
			if visited.TestAndSet(n) {
				next = append(next, n)
			}
		}
	}
	return next
}

// expandBottomUp scans every still-unvisited node once and claims it if
// it borders any already-visited node. For connected-component purposes
// (as opposed to shortest-path BFS) this is equivalent to checking
// membership in the current frontier specifically: once a node has been
// visited at all, an edge to it proves the unvisited node belongs to the
// same component, regardless of which level first reached the neighbor.
func expandBottomUp(g *Graph, visited *clonerun.AtomicBitmap) []int32 {
	var unvisited []int32
	for v := int32(0); v < int32(g.n); v++ {
		if !visited.Test(v) {
			unvisited = append(unvisited, v)
		}
	}
	if len(unvisited) == 0 {
		return nil
	}

	claimed, _ := clonerun.Map(context.Background(), unvisited, 0, func(v int32) (int32, error) {
		for _, n := range g.adj[v] {
			if visited.Test(n) {
				if visited.TestAndSet(v) {
					return v, nil
				}
				break
			}
		}
		return -1, nil
	})

	var next []int32
	for _, v := range claimed {
		if v >= 0 {
			next = append(next, v)
		}
	}
	sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
	return next
}
