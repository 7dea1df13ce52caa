// Package minhash computes MinHash signatures over a shingle.Document's
// normalized shingle set (C3), using a universal hash family
// f_i(x) = (a_i*x + b_i) mod p so that signatures for a given (k, seed)
// are fully deterministic and reproducible across runs and worker counts.
package minhash

import (
	"math/bits"
	"math/rand/v2"

	"github.com/panbanda/omen/pkg/analyzer/clones/shingle"
)

// mersenne61 is the Mersenne prime 2^61-1, chosen so modular reduction of
// a 64x64 bit product needs only a couple of fold steps (see reduceM61).
const mersenne61 = (1 << 61) - 1

// Signature is a document's MinHash sketch: Values[i] is the minimum
// f_i(shingle) observed across every normalized shingle in the document.
type Signature struct {
	Values []uint64
	Seed   uint64
}

type hashFamily struct{ a, b uint64 }

func families(k int, seed uint64) []hashFamily {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	fams := make([]hashFamily, k)
	for i := range fams {
		a := rng.Uint64() % mersenne61
		if a == 0 {
			a = 1
		}
		b := rng.Uint64() % mersenne61
		fams[i] = hashFamily{a: a, b: b}
	}
	return fams
}

func reduceM61(v uint64) uint64 {
	for v > mersenne61 {
		v = (v >> 61) + (v & mersenne61)
	}
	if v == mersenne61 {
		return 0
	}
	return v
}

func mulModM61(a, x uint64) uint64 {
	hi, lo := bits.Mul64(a, x)
	// 2^64 mod (2^61-1) == 8, so hi*2^64+lo ≡ hi*8+lo (mod p).
	return reduceM61(reduceM61(lo) + reduceM61(hi)*8)
}

func (f hashFamily) apply(x uint64) uint64 {
	return reduceM61(mulModM61(f.a, x%mersenne61) + f.b)
}

// Compute builds a k-length signature from doc's normalized shingle set.
func Compute(doc *shingle.Document, k int, seed uint64) *Signature {
	fams := families(k, seed)
	return computeWithFamilies(doc, fams, seed)
}

func computeWithFamilies(doc *shingle.Document, fams []hashFamily, seed uint64) *Signature {
	values := make([]uint64, len(fams))
	for i := range values {
		values[i] = ^uint64(0)
	}
	for shingleHash := range doc.NormShingles {
		for i, f := range fams {
			v := f.apply(shingleHash)
			if v < values[i] {
				values[i] = v
			}
		}
	}
	return &Signature{Values: values, Seed: seed}
}

// ComputeAll computes signatures for every document using one shared hash
// family (built once for the whole run), which is what makes signatures
// from two different documents comparable in the first place.
func ComputeAll(docs []shingle.Document, k int, seed uint64) []*Signature {
	fams := families(k, seed)
	out := make([]*Signature, len(docs))
	for i := range docs {
		out[i] = computeWithFamilies(&docs[i], fams, seed)
	}
	return out
}

// EstimateJaccard returns the fraction of matching signature slots, the
// standard MinHash estimator of the Jaccard similarity between the two
// underlying shingle sets.
func (s *Signature) EstimateJaccard(other *Signature) float64 {
	if s == nil || other == nil || len(s.Values) == 0 || len(s.Values) != len(other.Values) {
		return 0
	}
	matches := 0
	for i := range s.Values {
		if s.Values[i] == other.Values[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(s.Values))
}
