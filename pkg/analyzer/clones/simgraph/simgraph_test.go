package simgraph

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

func TestConnectedComponentsSimpleChain(t *testing.T) {
	// 0-1-2 form one component, 3-4 another, 5 is isolated and dropped.
	g := Build(6, [][2]int{{0, 1}, {1, 2}, {3, 4}})
	comps := ConnectedComponents(g)

	require.Len(t, comps, 2)
	assert.Equal(t, []int32{0, 1, 2}, comps[0])
	assert.Equal(t, []int32{3, 4}, comps[1])
}

func TestConnectedComponentsDropsIsolatedNodes(t *testing.T) {
	g := Build(3, nil)
	assert.Empty(t, ConnectedComponents(g))
}

func TestConnectedComponentsTopDownAndBottomUpAgree(t *testing.T) {
	g := Build(8, [][2]int{{0, 1}, {1, 2}, {2, 3}, {4, 5}, {5, 6}, {6, 7}, {7, 4}})

	topDownOnly := ConnectedComponentsWithOptions(g, 1<<30, 1<<30) // never switches to bottom-up
	bottomUpForced := ConnectedComponentsWithOptions(g, 1<<30, 0)  // switches to bottom-up immediately

	assert.Equal(t, topDownOnly, bottomUpForced)
}

func toNodeSets(comps [][]int32) []map[int64]struct{} {
	out := make([]map[int64]struct{}, len(comps))
	for i, c := range comps {
		m := make(map[int64]struct{}, len(c))
		for _, v := range c {
			m[int64(v)] = struct{}{}
		}
		out[i] = m
	}
	return out
}

func sameNodeSets(t *testing.T, got, want []map[int64]struct{}) {
	t.Helper()
	require.Len(t, got, len(want))

	sort.Slice(got, func(i, j int) bool { return minKey(got[i]) < minKey(got[j]) })
	sort.Slice(want, func(i, j int) bool { return minKey(want[i]) < minKey(want[j]) })

	for i := range got {
		assert.Equal(t, want[i], got[i])
	}
}

func minKey(m map[int64]struct{}) int64 {
	min := int64(1) << 62
	for k := range m {
		if k < min {
			min = k
		}
	}
	return min
}

// TestConnectedComponentsMatchesGonumOracle cross-validates our
// sequential and direction-optimizing paths against gonum's independent
// topo.ConnectedComponents implementation over random graphs, excluding
// isolated nodes (which our implementation intentionally discards).
func TestConnectedComponentsMatchesGonumOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		n := 5 + rng.Intn(150)
		edgeCount := rng.Intn(n * 3)

		edges := make([][2]int, 0, edgeCount)
		gonumGraph := simple.NewUndirectedGraph()
		for i := 0; i < n; i++ {
			gonumGraph.AddNode(simple.Node(i))
		}
		for i := 0; i < edgeCount; i++ {
			a, b := rng.Intn(n), rng.Intn(n)
			if a == b {
				continue
			}
			edges = append(edges, [2]int{a, b})
			gonumGraph.SetEdge(gonumGraph.NewEdge(simple.Node(a), simple.Node(b)))
		}

		g := Build(n, edges)

		oracle := topo.ConnectedComponents(gonumGraph)
		var oracleFiltered [][]int32
		for _, comp := range oracle {
			if len(comp) < 2 {
				continue
			}
			var ids []int32
			for _, nd := range comp {
				ids = append(ids, int32(nd.ID()))
			}
			oracleFiltered = append(oracleFiltered, ids)
		}

		sequential := ConnectedComponentsWithOptions(g, 1<<30, 1<<30)
		parallel := ConnectedComponentsWithOptions(g, 0, 0)

		sameNodeSets(t, toNodeSets(sequential), toNodeSets(oracleFiltered))
		sameNodeSets(t, toNodeSets(parallel), toNodeSets(oracleFiltered))
	}
}
