// Package exact finds Type-1 (verbatim, whitespace-only-differs) clones
// across every file in one pass using a generalized suffix array and the
// Kasai LCP array (C5). No library in the reference corpus builds suffix
// arrays or LCP arrays — this is hand-written algorithmic code, grounded
// in the textbook Manber-Myers / Kasai constructions rather than any
// example repo (see DESIGN.md).
package exact

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/omen/pkg/analyzer/clones/token"
)

// TaggedStream is one file's raw token stream, as input to Detect.
type TaggedStream struct {
	File   string
	Tokens []token.Token
}

// Plateau is a maximal run of identical tokens (length >= minTokens)
// shared by two or more locations, possibly across files.
type Plateau struct {
	Length  int // matched token count
	Members []Occurrence
}

// Occurrence locates one instance of a Plateau's matched run.
type Occurrence struct {
	File       string
	TokenStart int
	TokenEnd   int // exclusive
	StartLine  int
	EndLine    int
}

// Detect builds one generalized suffix array over every stream's raw
// token text and reports maximal matches of at least minTokens tokens,
// excluding same-file overlapping occurrences and fully-contained
// duplicate matches (tracked with a roaring bitmap over token positions).
func Detect(streams []TaggedStream, minTokens int) []Plateau {
	if minTokens <= 0 || len(streams) == 0 {
		return nil
	}

	symbols, owner := buildSymbols(streams)
	n := len(symbols)
	if n == 0 {
		return nil
	}

	sa := suffixArray(symbols)
	lcp := kasaiLCP(symbols, sa)

	raw := scanPlateaus(sa, lcp, minTokens)
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].depth > raw[j].depth })

	covered := roaring.New()
	var out []Plateau
	for _, g := range raw {
		members := resolveMembers(g, sa, owner, streams)
		members = dedupSameFileOverlap(members)
		if len(members) < 2 {
			continue
		}
		positions := globalPositions(members, owner, streams)
		if allCovered(positions, covered) {
			continue
		}
		for _, p := range positions {
			covered.Add(p)
		}
		out = append(out, Plateau{Length: g.depth, Members: members})
	}
	return out
}

type fileRange struct {
	stream       int
	start        int // inclusive index into symbols
	end          int // exclusive (sentinel position)
	tokenOffset  int // symbols[start] corresponds to Tokens[tokenOffset]
}

// buildSymbols concatenates every stream's per-token hash with a unique
// trailing sentinel so no common substring can cross a file boundary, and
// returns an owner lookup from a global symbol position back to (stream,
// token index).
func buildSymbols(streams []TaggedStream) ([]uint64, []fileRange) {
	var symbols []uint64
	owners := make([]fileRange, len(streams))

	sentinel := ^uint64(0)
	for i, s := range streams {
		start := len(symbols)
		for _, tok := range s.Tokens {
			symbols = append(symbols, xxhash.Sum64String(tok.Raw))
		}
		owners[i] = fileRange{stream: i, start: start, end: len(symbols), tokenOffset: start}
		symbols = append(symbols, sentinel)
		sentinel--
	}
	return symbols, owners
}

func ownerOf(pos int, owners []fileRange) (fileRange, bool) {
	for _, o := range owners {
		if pos >= o.start && pos < o.end {
			return o, true
		}
	}
	return fileRange{}, false
}

// suffixArray builds the suffix array of symbols via prefix doubling,
// O(n log^2 n).
func suffixArray(symbols []uint64) []int {
	n := len(symbols)
	sa := make([]int, n)
	rank := make([]int, n)
	tmp := make([]int, n)

	// Initial rank by symbol value.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return symbols[order[i]] < symbols[order[j]] })
	rank[order[0]] = 0
	for i := 1; i < n; i++ {
		rank[order[i]] = rank[order[i-1]]
		if symbols[order[i]] != symbols[order[i-1]] {
			rank[order[i]]++
		}
	}
	copy(sa, order)

	for k := 1; k < n; k *= 2 {
		keyOf := func(i int) (int, int) {
			second := -1
			if i+k < n {
				second = rank[i+k]
			}
			return rank[i], second
		}
		sort.Slice(sa, func(i, j int) bool {
			a1, a2 := keyOf(sa[i])
			b1, b2 := keyOf(sa[j])
			if a1 != b1 {
				return a1 < b1
			}
			return a2 < b2
		})

		tmp[sa[0]] = 0
		for i := 1; i < n; i++ {
			tmp[sa[i]] = tmp[sa[i-1]]
			a1, a2 := keyOf(sa[i-1])
			b1, b2 := keyOf(sa[i])
			if a1 != b1 || a2 != b2 {
				tmp[sa[i]]++
			}
		}
		copy(rank, tmp)
		if rank[sa[n-1]] == n-1 {
			break
		}
	}
	return sa
}

// kasaiLCP computes the LCP array in linear time given the suffix array.
func kasaiLCP(symbols []uint64, sa []int) []int {
	n := len(symbols)
	rank := make([]int, n)
	for i, s := range sa {
		rank[s] = i
	}

	lcp := make([]int, n)
	h := 0
	for i := 0; i < n; i++ {
		if rank[i] == 0 {
			h = 0
			continue
		}
		j := sa[rank[i]-1]
		for i+h < n && j+h < n && symbols[i+h] == symbols[j+h] {
			h++
		}
		lcp[rank[i]] = h
		if h > 0 {
			h--
		}
	}
	return lcp
}

type plateauGroup struct {
	loSA, hiSA int // inclusive range of suffix-array indices
	depth      int
}

// scanPlateaus walks the LCP array looking for maximal runs of
// consecutive suffixes whose shared-prefix depth (the minimum LCP across
// the run) is at least minTokens.
func scanPlateaus(sa, lcp []int, minTokens int) []plateauGroup {
	var groups []plateauGroup
	n := len(lcp)
	i := 1
	for i < n {
		if lcp[i] < minTokens {
			i++
			continue
		}
		lo := i - 1
		depth := lcp[i]
		j := i
		for j < n && lcp[j] >= minTokens {
			if lcp[j] < depth {
				depth = lcp[j]
			}
			j++
		}
		groups = append(groups, plateauGroup{loSA: lo, hiSA: j - 1, depth: depth})
		i = j + 1
	}
	return groups
}

func resolveMembers(g plateauGroup, sa []int, owners []fileRange, streams []TaggedStream) []Occurrence {
	var members []Occurrence
	for idx := g.loSA; idx <= g.hiSA; idx++ {
		pos := sa[idx]
		owner, ok := ownerOf(pos, owners)
		if !ok {
			continue
		}
		tokenStart := pos - owner.start
		tokenEnd := tokenStart + g.depth
		if tokenEnd > len(streams[owner.stream].Tokens) {
			continue
		}
		toks := streams[owner.stream].Tokens
		members = append(members, Occurrence{
			File:       streams[owner.stream].File,
			TokenStart: tokenStart,
			TokenEnd:   tokenEnd,
			StartLine:  toks[tokenStart].Span.StartLine,
			EndLine:    toks[tokenEnd-1].Span.EndLine,
		})
	}
	return members
}

// dedupSameFileOverlap removes occurrences that overlap an earlier one
// from the same file on any shared line — clones must be genuinely
// distinct locations.
func dedupSameFileOverlap(members []Occurrence) []Occurrence {
	var kept []Occurrence
	for _, m := range members {
		overlaps := false
		for _, k := range kept {
			if k.File == m.File && m.StartLine <= k.EndLine && k.StartLine <= m.EndLine {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, m)
		}
	}
	return kept
}

func globalPositions(members []Occurrence, owners []fileRange, streams []TaggedStream) []uint32 {
	fileIndex := make(map[string]int, len(streams))
	for i, s := range streams {
		fileIndex[s.File] = i
	}
	var positions []uint32
	for _, m := range members {
		owner := owners[fileIndex[m.File]]
		for t := m.TokenStart; t < m.TokenEnd; t++ {
			positions = append(positions, uint32(owner.start+t))
		}
	}
	return positions
}

// allCovered reports whether every position is already present in covered,
// meaning the plateau they belong to is wholly subsumed by an earlier,
// longer match and should not be reported again.
func allCovered(positions []uint32, covered *roaring.Bitmap) bool {
	if len(positions) == 0 {
		return false
	}
	for _, p := range positions {
		if !covered.Contains(p) {
			return false
		}
	}
	return true
}
