package lsh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/omen/pkg/analyzer/clones/minhash"
)

func TestChooseBandsRowsDividesK(t *testing.T) {
	b, r := ChooseBandsRows(128, 0.8)
	assert.Equal(t, 128, b*r)
	assert.True(t, b > 0 && r > 0)
}

func TestChooseBandsRowsHandlesEdgeTargets(t *testing.T) {
	b, r := ChooseBandsRows(100, 0)
	assert.Equal(t, 100, b*r)
	b, r = ChooseBandsRows(100, 1)
	assert.Equal(t, 100, b*r)
}

func sigWith(values ...uint64) *minhash.Signature {
	return &minhash.Signature{Values: values}
}

func TestIndexFindsCollidingPairs(t *testing.T) {
	idx := NewIndex(2, 2) // k=4
	idx.Insert(0, sigWith(1, 2, 3, 4))
	idx.Insert(1, sigWith(1, 2, 9, 9)) // shares band 0 with doc 0
	idx.Insert(2, sigWith(5, 6, 7, 8)) // shares nothing

	pairs := idx.Candidates()
	require.Len(t, pairs, 1)
	assert.Equal(t, Pair{A: 0, B: 1}, pairs[0])
}

func TestIndexNoCandidatesWhenNoCollisions(t *testing.T) {
	idx := NewIndex(2, 2)
	idx.Insert(0, sigWith(1, 2, 3, 4))
	idx.Insert(1, sigWith(5, 6, 7, 8))
	assert.Empty(t, idx.Candidates())
}
