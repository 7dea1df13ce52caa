package tokencache

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/omen/pkg/analyzer/clones/token"
	"github.com/panbanda/omen/pkg/source"
)

func TestClassifySplitsCachedAndChanged(t *testing.T) {
	files := source.NewMemory(map[string][]byte{
		"a.go": []byte("package a"),
		"b.go": []byte("package b"),
	})
	cache := New(t.TempDir())
	cache.Put("a.go", xxhash.Sum64([]byte("package a")), []token.Token{{Raw: "package"}})

	detector := NewChangeDetector(cache, files)
	cached, toAnalyze := detector.Classify([]string{"a.go", "b.go"})

	assert.Equal(t, []string{"a.go"}, cached)
	assert.Equal(t, []string{"b.go"}, toAnalyze)
}

func TestClassifyTreatsChangedContentAsToAnalyze(t *testing.T) {
	files := source.NewMemory(map[string][]byte{"a.go": []byte("package a v2")})
	cache := New(t.TempDir())
	cache.Put("a.go", xxhash.Sum64([]byte("package a v1")), []token.Token{{Raw: "package"}})

	detector := NewChangeDetector(cache, files)
	cached, toAnalyze := detector.Classify([]string{"a.go"})

	assert.Empty(t, cached)
	assert.Equal(t, []string{"a.go"}, toAnalyze)
}

func TestClassifyTreatsUnreadableFileAsToAnalyze(t *testing.T) {
	files := source.NewMemory(nil)
	cache := New(t.TempDir())

	detector := NewChangeDetector(cache, files)
	cached, toAnalyze := detector.Classify([]string{"missing.go"})

	assert.Empty(t, cached)
	assert.Equal(t, []string{"missing.go"}, toAnalyze)
}

func TestCachedTokensReturnsStoredSequence(t *testing.T) {
	files := source.NewMemory(map[string][]byte{"a.go": []byte("package a")})
	cache := New(t.TempDir())
	want := []token.Token{{Raw: "package", Kind: token.KindKeyword}}
	cache.Put("a.go", xxhash.Sum64([]byte("package a")), want)

	detector := NewChangeDetector(cache, files)
	got, ok := detector.CachedTokens("a.go")
	require.True(t, ok)
	assert.Equal(t, want, got)
}
