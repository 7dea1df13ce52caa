package clonerun

import "sync/atomic"

const wordBits = 64

// AtomicBitmap is a lock-free, word-aligned bitset safe for concurrent
// Test/TestAndSet from many goroutines — the one genuinely shared-mutable
// structure the direction-optimizing BFS needs, since two workers may race
// to claim the same frontier node. It is deliberately not built on
// RoaringBitmap: that library's compressed containers are not safe for
// concurrent fine-grained bit CAS, only for single-writer bulk ops.
type AtomicBitmap struct {
	words []atomic.Uint64
}

// NewAtomicBitmap allocates a bitmap with room for at least n bits.
func NewAtomicBitmap(n int) *AtomicBitmap {
	if n < 0 {
		n = 0
	}
	return &AtomicBitmap{words: make([]atomic.Uint64, (n+wordBits-1)/wordBits+1)}
}

// Test reports whether bit i is set.
func (b *AtomicBitmap) Test(i int32) bool {
	word := i / wordBits
	bit := uint64(1) << uint(i%wordBits)
	return b.words[word].Load()&bit != 0
}

// TestAndSet atomically sets bit i and returns true iff it transitioned
// from 0 to 1 — the claim primitive the BFS root-selection loop relies on.
// Its signature (func(int32) bool) matches ExpandFrontier's testAndSet
// parameter directly, so an *AtomicBitmap method value can be passed in
// without an adapter.
func (b *AtomicBitmap) TestAndSet(i int32) bool {
	word := i / wordBits
	bit := uint64(1) << uint(i%wordBits)
	for {
		old := b.words[word].Load()
		if old&bit != 0 {
			return false
		}
		if b.words[word].CompareAndSwap(old, old|bit) {
			return true
		}
	}
}

// Count returns the number of set bits up to (and not including) n.
func (b *AtomicBitmap) Count(n int32) int {
	count := 0
	for i := int32(0); i < n; i++ {
		if b.Test(i) {
			count++
		}
	}
	return count
}
