// Package clones wires token extraction, MinHash/LSH near-duplicate
// detection, suffix-array exact-duplicate detection, direction-optimizing
// parallel connected-components grouping, and snippet assembly into one
// end-to-end clone detection run (the "DetectClones" operation), plus an
// incremental variant backed by the token cache.
package clones

import (
	"context"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/omen/internal/clonerun"
	"github.com/panbanda/omen/internal/tokencache"
	"github.com/panbanda/omen/pkg/analyzer/clones/assemble"
	"github.com/panbanda/omen/pkg/analyzer/clones/exact"
	"github.com/panbanda/omen/pkg/analyzer/clones/lsh"
	"github.com/panbanda/omen/pkg/analyzer/clones/minhash"
	"github.com/panbanda/omen/pkg/analyzer/clones/shingle"
	"github.com/panbanda/omen/pkg/analyzer/clones/simgraph"
	"github.com/panbanda/omen/pkg/analyzer/clones/token"
	"github.com/panbanda/omen/pkg/analyzer/clones/verify"
	"github.com/panbanda/omen/pkg/config"
	"github.com/panbanda/omen/pkg/models"
	"github.com/panbanda/omen/pkg/parser"
	"github.com/panbanda/omen/pkg/source"
)

// Result is the outcome of a clone-detection run. Diagnostics records
// every file that was skipped because it could not be read or parsed —
// detection still completes over whatever files did succeed.
type Result struct {
	Groups      []models.CloneGroup
	Summary     models.CloneSummary
	Diagnostics []Error
}

// IncrementalResult additionally reports how much work the token cache
// saved.
type IncrementalResult struct {
	Result
	FilesCached   int
	FilesAnalyzed int
}

// fileUnit is one file's extraction result, whether freshly parsed or
// pulled from the token cache.
type fileUnit struct {
	path  string
	hash  uint64
	lines int
	seq   *token.Sequence
}

// DetectClones runs a full (non-incremental) clone-detection pass over
// paths. files abstracts how file content is read (filesystem or an
// in-memory fixture).
func DetectClones(ctx context.Context, cfg *config.Config, paths []string, files source.ContentSource) (*Result, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, newError(KindInvalidConfig, "", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	paths = filterIgnored(paths, cfg.IgnoredPatterns)
	units, diagnostics := extractAll(ctx, cfg, paths, files, nil)
	return assembleResult(ctx, cfg, units, diagnostics, files)
}

// DetectClonesIncremental behaves like DetectClones but skips
// re-extraction for any file whose content hash is unchanged from cache's
// last recorded hash, and records every freshly extracted file's tokens
// back into cache before returning. The caller owns cache persistence
// (tokencache.Cache.Save) — this function only mutates the in-memory
// cache.
func DetectClonesIncremental(ctx context.Context, cfg *config.Config, paths []string, files source.ContentSource, cache *tokencache.Cache) (*IncrementalResult, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, newError(KindInvalidConfig, "", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	paths = filterIgnored(paths, cfg.IgnoredPatterns)
	detector := tokencache.NewChangeDetector(cache, files)
	cachedPaths, toAnalyze := detector.Classify(paths)

	units := make([]fileUnit, 0, len(paths))
	for _, p := range cachedPaths {
		toks, ok := detector.CachedTokens(p)
		if !ok {
			toAnalyze = append(toAnalyze, p)
			continue
		}
		hash, _ := detector.Hash(p)
		content, err := files.Read(p)
		lineCount := 0
		if err == nil {
			lineCount = countLines(content)
		}
		units = append(units, fileUnit{path: p, hash: hash, lines: lineCount, seq: &token.Sequence{File: p, ContentHash: hash, Tokens: toks}})
	}

	fresh, diagnostics := extractAll(ctx, cfg, toAnalyze, files, cache)
	units = append(units, fresh...)

	result, err := assembleResult(ctx, cfg, units, diagnostics, files)
	if err != nil {
		return nil, err
	}

	return &IncrementalResult{
		Result:        *result,
		FilesCached:   len(units) - len(fresh),
		FilesAnalyzed: len(fresh),
	}, nil
}

// extractAll parses and tokenizes every path in a bounded pool. A file
// that fails to read or parse is skipped rather than aborting the whole
// run (KindFileIoError and KindParseFailed are both "skip this file, keep
// going" in this pipeline — a single unreadable or unparseable file must
// never abort a whole-tree scan), but the failure is recorded and
// returned as a diagnostic rather than silently dropped. When cache is
// non-nil, every freshly extracted sequence is recorded into it.
func extractAll(ctx context.Context, cfg *config.Config, paths []string, files source.ContentSource, cache *tokencache.Cache) ([]fileUnit, []Error) {
	opts := token.DefaultOptions()

	results, errs := clonerun.Map(ctx, paths, workerCount(cfg), func(p string) (*fileUnit, error) {
		content, err := files.Read(p)
		if err != nil {
			return nil, newError(KindFileIoError, p, err)
		}
		if cfg.MaxFileSize > 0 && int64(len(content)) > cfg.MaxFileSize {
			return nil, nil
		}

		lang := parser.DetectLanguage(p)
		if lang == parser.LangUnknown {
			return nil, nil
		}

		psr := parser.New()
		defer psr.Close()

		pr, err := psr.Parse(content, lang, p)
		if err != nil {
			return nil, newError(KindParseFailed, p, err)
		}

		hash := xxhash.Sum64(content)
		seq, err := token.Extract(pr, hash, opts)
		if err != nil {
			return nil, newError(KindParseFailed, p, err)
		}

		if cache != nil {
			cache.Put(p, hash, seq.Tokens)
		}

		return &fileUnit{path: p, hash: hash, lines: countLines(content), seq: seq}, nil
	})

	units := make([]fileUnit, 0, len(results))
	for _, r := range results {
		if r != nil {
			units = append(units, *r)
		}
	}

	var diagnostics []Error
	if errs != nil {
		for _, item := range errs.Items {
			if ce, ok := item.Err.(*Error); ok {
				diagnostics = append(diagnostics, *ce)
			}
		}
	}
	return units, diagnostics
}

// workerCount resolves cfg.ParallelMode/MaxConcurrency to an actual
// goroutine budget: ParallelSequential always forces a single worker,
// overriding MaxConcurrency, since "sequential" means no bounded-pool
// fan-out at all, not merely a smaller one.
func workerCount(cfg *config.Config) int {
	if cfg.ParallelMode == config.ParallelSequential {
		return 1
	}
	return clonerun.Workers(cfg.MaxConcurrency)
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	return strings.Count(string(content), "\n") + 1
}

// assembleResult runs the exact and near-duplicate branches over a
// uniform set of extracted file units and merges their output, attaching
// whatever per-file diagnostics extraction produced.
func assembleResult(ctx context.Context, cfg *config.Config, units []fileUnit, diagnostics []Error, files source.ContentSource) (*Result, error) {
	totalLines := 0
	for _, u := range units {
		totalLines += u.lines
	}

	var groups []models.CloneGroup

	if wantsType(cfg.CloneTypes, config.CloneTypeExact) {
		groups = append(groups, detectExact(units, cfg, files)...)
	}
	if wantsType(cfg.CloneTypes, config.CloneTypeNear) {
		groups = append(groups, detectNear(ctx, units, cfg, files)...)
	}

	summary := assemble.Summary(groups, len(units), totalLines)
	return &Result{Groups: groups, Summary: summary, Diagnostics: diagnostics}, nil
}

func wantsType(types []config.CloneType, want config.CloneType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// detectExact finds Type-1 verbatim clones with the suffix-array
// detector and assembles each maximal plateau directly into its own
// CloneGroup: a plateau's members are by construction pairwise identical,
// so no similarity graph is needed to know they belong together.
func detectExact(units []fileUnit, cfg *config.Config, files source.ContentSource) []models.CloneGroup {
	streams := make([]exact.TaggedStream, 0, len(units))
	for _, u := range units {
		streams = append(streams, exact.TaggedStream{File: u.seq.File, Tokens: u.seq.Tokens})
	}

	plateaus := exact.Detect(streams, cfg.MinimumTokens)

	var groups []models.CloneGroup
	for _, pl := range plateaus {
		docs := make([]shingle.Document, len(pl.Members))
		all := make([]int32, len(pl.Members))
		for i, m := range pl.Members {
			docs[i] = shingle.Document{
				ID:         i,
				File:       m.File,
				TokenStart: m.TokenStart,
				TokenEnd:   m.TokenEnd,
				StartLine:  m.StartLine,
				EndLine:    m.EndLine,
			}
			all[i] = int32(i)
		}
		groups = append(groups, assemble.Assemble([][]int32{all}, docs, nil, files, models.CloneType1)...)
	}
	return groups
}

// detectNear finds near-duplicate clones via shingling, MinHash, banded
// LSH candidate generation, exact-Jaccard verification, and
// direction-optimizing connected-components grouping.
func detectNear(ctx context.Context, units []fileUnit, cfg *config.Config, files source.ContentSource) []models.CloneGroup {
	docs := buildDocuments(units, cfg)
	if len(docs) == 0 {
		return nil
	}

	signatures := minhash.ComputeAll(docs, cfg.NumHashes, cfg.Seed)

	bands, rows := lsh.ChooseBandsRows(cfg.NumHashes, cfg.MinimumSimilarity)
	idx := lsh.NewIndex(bands, rows)
	for i, sig := range signatures {
		idx.Insert(i, sig)
	}
	candidates := idx.Candidates()

	// ParallelAlways drives verification through the streaming, batched
	// path (bounded task groups plus backpressure) even when the
	// candidate set is small enough that Verify's single blocking pool
	// would do; every other mode uses the plain call.
	var verified []verify.Verified
	if cfg.ParallelMode == config.ParallelAlways {
		verified = VerifyStreaming(ctx, candidates, docs, cfg.MinimumSimilarity, workerCount(cfg), nil)
	} else {
		verified = verify.Verify(candidates, docs, cfg.MinimumSimilarity, workerCount(cfg))
	}
	if len(verified) == 0 {
		return nil
	}

	edges := make([][2]int, 0, len(verified))
	simMap := make(map[[2]int32]float64, len(verified))
	for _, v := range verified {
		a, b := int32(v.A.ID), int32(v.B.ID)
		edges = append(edges, [2]int{int(a), int(b)})
		simMap[pairKey(a, b)] = v.Similarity
	}

	graph := simgraph.Build(len(docs), edges)
	components := simgraph.ConnectedComponentsWithOptions(graph, cfg.Alpha, simgraph.DefaultMinParallelSize)

	sim := func(a, b int32) float64 {
		if s, ok := simMap[pairKey(a, b)]; ok {
			return s
		}
		return 0
	}

	return assemble.Assemble(components, docs, sim, files, models.CloneType2)
}

func pairKey(a, b int32) [2]int32 {
	if a > b {
		a, b = b, a
	}
	return [2]int32{a, b}
}

// buildDocuments shingles every file's token sequence into fixed-size,
// overlapping blocks with globally unique, contiguous IDs — docs[i].ID
// always equals i, so later stages can use either as the graph node
// index interchangeably.
func buildDocuments(units []fileUnit, cfg *config.Config) []shingle.Document {
	var docs []shingle.Document
	nextID := 0
	for _, u := range units {
		blocks := shingle.BlockDocuments(u.seq, cfg.MinimumTokens, cfg.ShingleSize, nextID)
		docs = append(docs, blocks...)
		nextID += len(blocks)
	}
	return docs
}

// VerifyStreaming drives verify.Stream over candidates, forwarding each
// batch's progress and returning the final accumulated set once the
// stream closes.
func VerifyStreaming(ctx context.Context, candidates []lsh.Pair, docs []shingle.Document, tau float64, maxWorkers int, onProgress func(verify.Progress)) []verify.Verified {
	var all []verify.Verified
	for p := range verify.Stream(ctx, candidates, docs, tau, maxWorkers) {
		if onProgress != nil {
			onProgress(p)
		}
		all = append(all, p.Verified...)
		if p.Err != nil {
			break
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].A.File < all[j].A.File })
	return all
}
