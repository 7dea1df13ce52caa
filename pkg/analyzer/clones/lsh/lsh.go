// Package lsh buckets MinHash signatures into bands to surface candidate
// near-duplicate pairs in sub-quadratic time (C4), generalizing the
// teacher's sequential band-hashing loop to run across a bounded worker
// pool with a per-worker local candidate buffer merged at the end.
package lsh

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/omen/internal/clonerun"
	"github.com/panbanda/omen/pkg/analyzer/clones/minhash"
)

// Pair is an unordered pair of document indices; A is always < B.
type Pair struct{ A, B int }

func newPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// ChooseBandsRows picks (b, r) with b*r==k minimizing the distance between
// the LSH S-curve's 50%-collision threshold (1/b)^(1/r) and the target
// similarity t. Mirrors the shape of the teacher's DefaultConfig
// (NumHashFunctions:200, NumBands:20, RowsPerBand:10), generalized into a
// solver instead of a fixed table.
func ChooseBandsRows(k int, t float64) (b, r int) {
	if k <= 0 {
		return 1, 1
	}
	if t <= 0 {
		t = 0.01
	}
	if t >= 1 {
		t = 0.99
	}

	bestB, bestR := 1, k
	bestDist := math.MaxFloat64
	for cand := 1; cand <= k; cand++ {
		if k%cand != 0 {
			continue
		}
		rows := k / cand
		threshold := math.Pow(1.0/float64(cand), 1.0/float64(rows))
		dist := math.Abs(threshold - t)
		if dist < bestDist {
			bestDist, bestB, bestR = dist, cand, rows
		}
	}
	return bestB, bestR
}

// Index is a banded LSH index over a fixed set of MinHash signatures.
type Index struct {
	bands      int
	rows       int
	buckets    []map[uint64][]int // per-band: bucket hash -> doc indices
	signatures []*minhash.Signature
}

// NewIndex creates an empty index for signatures of length bands*rows.
func NewIndex(bands, rows int) *Index {
	buckets := make([]map[uint64][]int, bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]int)
	}
	return &Index{bands: bands, rows: rows, buckets: buckets}
}

// Insert adds a signature under document index id. ids must be the dense
// 0..N-1 index into the same slice the caller will later use to resolve
// Pair members back to Documents.
func (idx *Index) Insert(id int, sig *minhash.Signature) {
	if len(idx.signatures) <= id {
		grown := make([]*minhash.Signature, id+1)
		copy(grown, idx.signatures)
		idx.signatures = grown
	}
	idx.signatures[id] = sig

	for band := 0; band < idx.bands; band++ {
		h := idx.hashBand(sig, band)
		idx.buckets[band][h] = append(idx.buckets[band][h], id)
	}
}

// Candidates returns every pair of document indices that collided in at
// least one band, computed with one bounded-pool goroutine per band.
func (idx *Index) Candidates() []Pair {
	perBand, _ := clonerun.Map(context.Background(), bandRange(idx.bands), 0, func(band int) ([]Pair, error) {
		var pairs []Pair
		for _, ids := range idx.buckets[band] {
			if len(ids) < 2 {
				continue
			}
			for i := 0; i < len(ids); i++ {
				for j := i + 1; j < len(ids); j++ {
					pairs = append(pairs, newPair(ids[i], ids[j]))
				}
			}
		}
		return pairs, nil
	})

	seen := make(map[Pair]struct{})
	var out []Pair
	for _, pairs := range perBand {
		for _, p := range pairs {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func bandRange(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = i
	}
	return r
}

func (idx *Index) hashBand(sig *minhash.Signature, band int) uint64 {
	start := band * idx.rows
	end := start + idx.rows
	if end > len(sig.Values) {
		end = len(sig.Values)
	}

	h := xxhash.New()
	buf := make([]byte, 8)
	for i := start; i < end; i++ {
		v := sig.Values[i]
		for j := 0; j < 8; j++ {
			buf[j] = byte(v >> (j * 8))
		}
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}
