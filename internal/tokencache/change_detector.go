package tokencache

import (
	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/omen/pkg/analyzer/clones/token"
	"github.com/panbanda/omen/pkg/source"
)

// ChangeDetector classifies files as cache-hit or needing re-analysis by
// comparing each file's current content hash against Cache's recorded
// hash. Cache keys are the file paths exactly as the caller passes them;
// they are not converted to absolute paths, so a relative and an absolute
// path to the same file are distinct keys. ChangeDetector does not
// namespace by subsystem, only by path, so a second cache consumer sharing
// this format must use a distinct cache directory.
type ChangeDetector struct {
	cache *Cache
	files source.ContentSource
}

// NewChangeDetector builds a detector over cache, reading file content
// through files to compute each candidate's current hash.
func NewChangeDetector(cache *Cache, files source.ContentSource) *ChangeDetector {
	return &ChangeDetector{cache: cache, files: files}
}

// Classify splits paths into cached (a valid cache entry exists for the
// file's current content) and toAnalyze (no entry, or the file changed).
// A file that fails to read is always classified toAnalyze — a read
// error is a later stage's problem, not a reason to trust a stale cache
// entry.
func (d *ChangeDetector) Classify(paths []string) (cached, toAnalyze []string) {
	for _, p := range paths {
		content, err := d.files.Read(p)
		if err != nil {
			toAnalyze = append(toAnalyze, p)
			continue
		}
		hash := xxhash.Sum64(content)
		if _, ok := d.cache.Get(p, hash); ok {
			cached = append(cached, p)
		} else {
			toAnalyze = append(toAnalyze, p)
		}
	}
	return cached, toAnalyze
}

// Hash computes the content hash Cache.Put/Get expect for path's current
// content.
func (d *ChangeDetector) Hash(path string) (uint64, error) {
	content, err := d.files.Read(path)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(content), nil
}

// CachedTokens retrieves path's cached token sequence, if its current
// content hash still matches the cached entry.
func (d *ChangeDetector) CachedTokens(path string) ([]token.Token, bool) {
	hash, err := d.Hash(path)
	if err != nil {
		return nil, false
	}
	return d.cache.Get(path, hash)
}
