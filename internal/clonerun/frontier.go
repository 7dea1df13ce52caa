package clonerun

import "sort"

// ExpandFrontier partitions frontier across maxWorkers goroutines, calling
// neighbors(v) for each node and claiming each discovered neighbor with
// testAndSet (expected to be AtomicBitmap.TestAndSet or an equivalent).
// Newly claimed nodes form the next frontier, returned in sorted order so
// that the top-down BFS step produces the same frontier membership
// regardless of how many workers ran it (spec's determinism invariant —
// only set membership is guaranteed, not traversal order within a level).
func ExpandFrontier(frontier []int32, neighbors func(int32) []int32, testAndSet func(int32) bool, maxWorkers int) []int32 {
	if len(frontier) == 0 {
		return nil
	}

	chunks, _ := Map(nil, frontier, maxWorkers, func(v int32) ([]int32, error) {
		var next []int32
		for _, n := range neighbors(v) {
			if testAndSet(n) {
				next = append(next, n)
			}
		}
		return next, nil
	})

	var merged []int32
	for _, c := range chunks {
		merged = append(merged, c...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	return merged
}
