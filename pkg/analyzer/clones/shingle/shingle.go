// Package shingle turns a token.Sequence into overlapping blocks
// (Documents) and, for each, a rolling-window shingle set over both raw
// and identifier-normalized token text (C2 Fingerprinter).
package shingle

import (
	"iter"

	"github.com/zeebo/blake3"

	"github.com/panbanda/omen/pkg/analyzer/clones/token"
)

// Document is one shingled, fixed-size window of a file's token stream.
// Its ID is assigned by the caller from a pre-reserved, contiguous range
// so that parallel extraction across many files never collides and never
// depends on completion order.
type Document struct {
	ID         int
	File       string
	TokenStart int // inclusive index into the owning Sequence.Tokens
	TokenEnd   int // exclusive
	StartLine  int
	EndLine    int

	RawShingles  map[uint64]struct{}
	NormShingles map[uint64]struct{}
}

// TokenCount reports how many tokens the document spans.
func (d *Document) TokenCount() int { return d.TokenEnd - d.TokenStart }

// Stream yields, in order, the rolling-window shingle hash for each
// w-token window of tokens starting at index i such that i+w<=len(tokens).
// Windows shorter than w never appear — spec.md's "drop short windows"
// rule. normalized selects which text field of Token each window hashes.
func Stream(tokens []token.Token, w int, normalized bool) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if w <= 0 || len(tokens) < w {
			return
		}
		for i := 0; i+w <= len(tokens); i++ {
			if !yield(hashWindow(tokens[i:i+w], normalized)) {
				return
			}
		}
	}
}

func hashWindow(window []token.Token, normalized bool) uint64 {
	h := blake3.New()
	for _, tok := range window {
		if normalized {
			h.Write([]byte(tok.Normalized))
		} else {
			h.Write([]byte(tok.Raw))
		}
		h.Write([]byte{0}) // separator so adjacent tokens can't blend
	}
	sum := h.Sum(nil)
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return v
}

// BlockCount returns how many blocks BlockDocuments would produce for a
// sequence of n tokens with block size b and its implied stride
// s=max(1,b/2), without building them — used to pre-reserve disjoint ID
// ranges before any parallel work starts.
func BlockCount(n, b int) int {
	if b <= 0 || n < b {
		return 0
	}
	s := stride(b)
	count := 0
	for start := 0; start+b <= n; start += s {
		count++
	}
	return count
}

func stride(b int) int {
	s := b / 2
	if s < 1 {
		s = 1
	}
	return s
}

// BlockDocuments splits seq into overlapping token blocks of size b
// (stride s=max(1,b/2)) and shingles each one. Document IDs are assigned
// startID, startID+1, ... in token order, so callers must reserve
// exactly BlockCount(len(seq.Tokens), b) ids for this sequence beforehand.
func BlockDocuments(seq *token.Sequence, b, w, startID int) []Document {
	n := len(seq.Tokens)
	if b <= 0 || n < b {
		return nil
	}
	s := stride(b)
	var docs []Document
	id := startID
	for start := 0; start+b <= n; start += s {
		end := start + b
		window := seq.Tokens[start:end]

		doc := Document{
			ID:           id,
			File:         seq.File,
			TokenStart:   start,
			TokenEnd:     end,
			StartLine:    window[0].Span.StartLine,
			EndLine:      window[len(window)-1].Span.EndLine,
			RawShingles:  setOf(Stream(window, w, false)),
			NormShingles: setOf(Stream(window, w, true)),
		}
		docs = append(docs, doc)
		id++
	}
	return docs
}

func setOf(seq iter.Seq[uint64]) map[uint64]struct{} {
	out := make(map[uint64]struct{})
	for v := range seq {
		out[v] = struct{}{}
	}
	return out
}

// ExactJaccard computes the exact Jaccard similarity of two documents'
// normalized shingle sets, used by the Verifier (C6) to confirm an
// LSH-estimated candidate.
func ExactJaccard(a, b *Document) float64 {
	return jaccard(a.NormShingles, b.NormShingles)
}

func jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	small, big := a, b
	if len(small) > len(big) {
		small, big = big, small
	}
	inter := 0
	for v := range small {
		if _, ok := big[v]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
