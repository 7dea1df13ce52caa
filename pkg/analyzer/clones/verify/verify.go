// Package verify confirms LSH candidate pairs (C6) with exact Jaccard
// similarity over their normalized shingle sets, filters same-file
// overlapping pairs, and reports the survivors against a similarity
// threshold. A streaming variant reports progress as batches complete,
// for callers driving a progress bar over a large candidate set.
package verify

import (
	"context"

	"github.com/panbanda/omen/internal/clonerun"
	"github.com/panbanda/omen/pkg/analyzer/clones/lsh"
	"github.com/panbanda/omen/pkg/analyzer/clones/shingle"
)

// Verified is a candidate pair that passed exact similarity verification.
type Verified struct {
	A, B       shingle.Document
	Similarity float64
}

// batchSize bounds how many pairs one progress report covers, and bufSize
// bounds how many in-flight batches the Stream channel can hold before the
// producer blocks on a slow consumer.
const (
	batchSize = 500
	bufSize   = 4
)

// Progress reports incremental verification results as they complete.
type Progress struct {
	Verified []Verified
	Done     int
	Total    int
	Err      error
}

// sameFile reports whether two documents are from the same file and their
// line ranges overlap — a candidate pair spanning the same lines (or an
// overlapping window of them) carries no clone signal.
func sameFile(a, b *shingle.Document) bool {
	if a.File != b.File {
		return false
	}
	return a.StartLine <= b.EndLine && b.StartLine <= a.EndLine
}

func verifyOne(docs []shingle.Document, p lsh.Pair, tau float64) (Verified, bool) {
	a, b := &docs[p.A], &docs[p.B]
	if sameFile(a, b) {
		return Verified{}, false
	}
	sim := shingle.ExactJaccard(a, b)
	if sim < tau {
		return Verified{}, false
	}
	return Verified{A: *a, B: *b, Similarity: sim}, true
}

// Verify confirms every candidate pair against docs, in a single bounded
// pool of maxWorkers workers (0 selects the default), and returns every
// pair whose exact Jaccard similarity meets tau.
func Verify(pairs []lsh.Pair, docs []shingle.Document, tau float64, maxWorkers int) []Verified {
	results, _ := clonerun.Map(context.Background(), pairs, maxWorkers, func(p lsh.Pair) (*Verified, error) {
		if v, ok := verifyOne(docs, p, tau); ok {
			return &v, nil
		}
		return nil, nil
	})

	var out []Verified
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// Stream verifies pairs in batches of batchSize, each batch run over a
// pool of maxWorkers workers (0 selects the default), emitting a Progress
// value per batch on the returned channel so a caller can drive a
// progress bar over a large candidate set. The channel is closed once
// every batch has been processed or ctx is cancelled.
func Stream(ctx context.Context, pairs []lsh.Pair, docs []shingle.Document, tau float64, maxWorkers int) <-chan Progress {
	out := make(chan Progress, bufSize)

	go func() {
		defer close(out)

		total := len(pairs)
		done := 0
		for start := 0; start < total; start += batchSize {
			end := start + batchSize
			if end > total {
				end = total
			}
			batch := pairs[start:end]

			select {
			case <-ctx.Done():
				out <- Progress{Done: done, Total: total, Err: ctx.Err()}
				return
			default:
			}

			results, errs := clonerun.Map(ctx, batch, maxWorkers, func(p lsh.Pair) (*Verified, error) {
				if v, ok := verifyOne(docs, p, tau); ok {
					return &v, nil
				}
				return nil, nil
			})

			var verified []Verified
			for _, r := range results {
				if r != nil {
					verified = append(verified, *r)
				}
			}
			done += len(batch)

			var err error
			if errs != nil {
				err = errs
			}
			out <- Progress{Verified: verified, Done: done, Total: total, Err: err}
			if err != nil {
				return
			}
		}
	}()

	return out
}
