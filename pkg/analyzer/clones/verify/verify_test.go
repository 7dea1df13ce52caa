package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/omen/pkg/analyzer/clones/lsh"
	"github.com/panbanda/omen/pkg/analyzer/clones/shingle"
)

func shingleSet(vals ...uint64) map[uint64]struct{} {
	m := make(map[uint64]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

func TestVerifyKeepsPairsAboveThreshold(t *testing.T) {
	docs := []shingle.Document{
		{ID: 0, File: "a.go", TokenStart: 0, TokenEnd: 10, StartLine: 1, EndLine: 10, NormShingles: shingleSet(1, 2, 3, 4)},
		{ID: 1, File: "b.go", TokenStart: 0, TokenEnd: 10, StartLine: 1, EndLine: 10, NormShingles: shingleSet(1, 2, 3, 5)}, // jaccard 3/5=0.6
	}
	out := Verify([]lsh.Pair{{A: 0, B: 1}}, docs, 0.5, 0)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.6, out[0].Similarity, 1e-9)
}

func TestVerifyDropsPairsBelowThreshold(t *testing.T) {
	docs := []shingle.Document{
		{ID: 0, File: "a.go", TokenStart: 0, TokenEnd: 10, StartLine: 1, EndLine: 10, NormShingles: shingleSet(1, 2, 3, 4)},
		{ID: 1, File: "b.go", TokenStart: 0, TokenEnd: 10, StartLine: 1, EndLine: 10, NormShingles: shingleSet(1, 2, 3, 5)},
	}
	out := Verify([]lsh.Pair{{A: 0, B: 1}}, docs, 0.9, 0)
	assert.Empty(t, out)
}

func TestVerifyRejectsSameFileOverlap(t *testing.T) {
	docs := []shingle.Document{
		{ID: 0, File: "a.go", TokenStart: 0, TokenEnd: 10, StartLine: 1, EndLine: 10, NormShingles: shingleSet(1, 2, 3)},
		{ID: 1, File: "a.go", TokenStart: 5, TokenEnd: 15, StartLine: 5, EndLine: 15, NormShingles: shingleSet(1, 2, 3)},
	}
	out := Verify([]lsh.Pair{{A: 0, B: 1}}, docs, 0.5, 0)
	assert.Empty(t, out, "overlapping windows within the same file carry no clone signal")
}

func TestVerifyRejectsSameFileOverlapByLineDespiteDisjointTokens(t *testing.T) {
	// Several statements packed onto the same lines can land in disjoint
	// token ranges while still sharing lines — the line interval, not the
	// token interval, is what determines overlap.
	docs := []shingle.Document{
		{ID: 0, File: "a.go", TokenStart: 0, TokenEnd: 10, StartLine: 1, EndLine: 3, NormShingles: shingleSet(1, 2, 3)},
		{ID: 1, File: "a.go", TokenStart: 10, TokenEnd: 20, StartLine: 2, EndLine: 4, NormShingles: shingleSet(1, 2, 3)},
	}
	out := Verify([]lsh.Pair{{A: 0, B: 1}}, docs, 0.5, 0)
	assert.Empty(t, out, "overlapping line ranges carry no clone signal even with disjoint token ranges")
}

func TestVerifyKeepsNonOverlappingSameFilePairs(t *testing.T) {
	docs := []shingle.Document{
		{ID: 0, File: "a.go", TokenStart: 0, TokenEnd: 10, StartLine: 1, EndLine: 10, NormShingles: shingleSet(1, 2, 3)},
		{ID: 1, File: "a.go", TokenStart: 20, TokenEnd: 30, StartLine: 20, EndLine: 30, NormShingles: shingleSet(1, 2, 3)},
	}
	out := Verify([]lsh.Pair{{A: 0, B: 1}}, docs, 0.5, 0)
	assert.Len(t, out, 1, "a genuine internal duplication within one file is still a clone")
}

func TestStreamReportsEveryPair(t *testing.T) {
	docs := make([]shingle.Document, 4)
	for i := range docs {
		docs[i] = shingle.Document{ID: i, File: "f.go", TokenStart: i * 100, TokenEnd: i*100 + 10, StartLine: i * 100, EndLine: i*100 + 10, NormShingles: shingleSet(1, 2, 3)}
	}
	pairs := []lsh.Pair{{A: 0, B: 1}, {A: 2, B: 3}}

	var total []Verified
	var lastDone int
	for p := range Stream(context.Background(), pairs, docs, 0.5, 0) {
		require.NoError(t, p.Err)
		total = append(total, p.Verified...)
		lastDone = p.Done
	}
	assert.Equal(t, len(pairs), lastDone)
	assert.Len(t, total, 2)
}

func TestStreamEmptyPairs(t *testing.T) {
	ch := Stream(context.Background(), nil, nil, 0.5, 0)
	var got []Progress
	for p := range ch {
		got = append(got, p)
	}
	assert.Empty(t, got)
}
