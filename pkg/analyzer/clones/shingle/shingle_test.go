package shingle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/omen/pkg/analyzer/clones/token"
)

func tokensOf(raw ...string) []token.Token {
	out := make([]token.Token, len(raw))
	for i, r := range raw {
		out[i] = token.Token{Kind: token.KindIdentifier, Raw: r, Normalized: r}
	}
	return out
}

func collect(s func(func(uint64) bool)) []uint64 {
	var out []uint64
	s(func(v uint64) bool { out = append(out, v); return true })
	return out
}

func TestStreamDropsShortWindows(t *testing.T) {
	toks := tokensOf("a", "b")
	hashes := collect(Stream(toks, 5, false))
	assert.Empty(t, hashes)
}

func TestStreamWindowCount(t *testing.T) {
	toks := tokensOf("a", "b", "c", "d", "e")
	hashes := collect(Stream(toks, 3, false))
	assert.Len(t, hashes, 3) // windows at offsets 0,1,2
}

func TestStreamDeterministic(t *testing.T) {
	toks := tokensOf("a", "b", "c", "d")
	h1 := collect(Stream(toks, 2, false))
	h2 := collect(Stream(toks, 2, false))
	assert.Equal(t, h1, h2)
}

func TestBlockDocumentsIDsAreContiguous(t *testing.T) {
	seq := &token.Sequence{File: "f.go", Tokens: tokensOf("a", "b", "c", "d", "e", "f", "g", "h")}
	docs := BlockDocuments(seq, 4, 2, 100)
	require.NotEmpty(t, docs)
	for i, d := range docs {
		assert.Equal(t, 100+i, d.ID)
		assert.Equal(t, "f.go", d.File)
	}
	assert.Equal(t, BlockCount(len(seq.Tokens), 4), len(docs))
}

func TestBlockDocumentsBelowBlockSizeYieldsNone(t *testing.T) {
	seq := &token.Sequence{File: "f.go", Tokens: tokensOf("a", "b")}
	docs := BlockDocuments(seq, 10, 2, 0)
	assert.Empty(t, docs)
	assert.Equal(t, 0, BlockCount(len(seq.Tokens), 10))
}

func TestExactJaccardIdenticalIsOne(t *testing.T) {
	seq := &token.Sequence{File: "f.go", Tokens: tokensOf("a", "b", "c", "d")}
	docs := BlockDocuments(seq, 4, 2, 0)
	require.Len(t, docs, 1)
	assert.Equal(t, 1.0, ExactJaccard(&docs[0], &docs[0]))
}

func TestExactJaccardDisjointIsZero(t *testing.T) {
	a := Document{NormShingles: map[uint64]struct{}{1: {}, 2: {}}}
	b := Document{NormShingles: map[uint64]struct{}{3: {}, 4: {}}}
	assert.Equal(t, 0.0, ExactJaccard(&a, &b))
}
