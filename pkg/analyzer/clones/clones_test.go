package clones

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/omen/internal/tokencache"
	"github.com/panbanda/omen/pkg/analyzer/clones/lsh"
	"github.com/panbanda/omen/pkg/analyzer/clones/verify"
	"github.com/panbanda/omen/pkg/config"
	"github.com/panbanda/omen/pkg/models"
	"github.com/panbanda/omen/pkg/source"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MinimumTokens = 10
	cfg.ShingleSize = 3
	cfg.NumHashes = 32
	cfg.MinimumSimilarity = 0.5
	cfg.Seed = 1
	cfg.MaxConcurrency = 2
	cfg.IgnoredPatterns = nil
	return cfg
}

const addFn = `package sample

func Add(a int, b int) int {
	sum := a + b
	return sum
}
`

const sumFn = `package sample

func Sum(x int, y int) int {
	total := x + y
	return total
}
`

const unrelated = `package sample

type Config struct {
	Name string
}
`

func containsFile(g models.CloneGroup, file string) bool {
	for _, inst := range g.Instances {
		if inst.File == file {
			return true
		}
	}
	return false
}

func TestDetectClonesFindsExactDuplicateAcrossFiles(t *testing.T) {
	files := source.NewMemory(map[string][]byte{
		"a.go": []byte(addFn),
		"b.go": []byte(addFn),
	})
	cfg := testConfig()
	cfg.CloneTypes = []config.CloneType{config.CloneTypeExact}

	result, err := DetectClones(context.Background(), cfg, []string{"a.go", "b.go"}, files)
	require.NoError(t, err)
	require.NotEmpty(t, result.Groups)

	found := false
	for _, g := range result.Groups {
		if g.Type == models.CloneType1 && containsFile(g, "a.go") && containsFile(g, "b.go") {
			found = true
		}
	}
	assert.True(t, found, "expected an exact clone group spanning a.go and b.go")
}

func TestDetectClonesFindsNearDuplicateAcrossFiles(t *testing.T) {
	files := source.NewMemory(map[string][]byte{
		"a.go": []byte(addFn),
		"b.go": []byte(sumFn),
	})
	cfg := testConfig()
	cfg.CloneTypes = []config.CloneType{config.CloneTypeNear}

	result, err := DetectClones(context.Background(), cfg, []string{"a.go", "b.go"}, files)
	require.NoError(t, err)
	require.NotEmpty(t, result.Groups)

	found := false
	for _, g := range result.Groups {
		if g.Type == models.CloneType2 && containsFile(g, "a.go") && containsFile(g, "b.go") {
			found = true
		}
	}
	assert.True(t, found, "expected a near-duplicate clone group spanning a.go and b.go")
}

func TestDetectClonesNoClonesAmongUnrelatedFiles(t *testing.T) {
	files := source.NewMemory(map[string][]byte{
		"a.go": []byte(addFn),
		"c.go": []byte(unrelated),
	})
	cfg := testConfig()

	result, err := DetectClones(context.Background(), cfg, []string{"a.go", "c.go"}, files)
	require.NoError(t, err)
	for _, g := range result.Groups {
		assert.False(t, containsFile(g, "c.go") && containsFile(g, "a.go"), "a.go and c.go share no cloned content")
	}
}

func TestDetectClonesSkipsIgnoredPatterns(t *testing.T) {
	files := source.NewMemory(map[string][]byte{
		"a.go":      []byte(addFn),
		"a_test.go": []byte(addFn),
	})
	cfg := testConfig()
	cfg.IgnoredPatterns = []string{"*_test.go"}

	result, err := DetectClones(context.Background(), cfg, []string{"a.go", "a_test.go"}, files)
	require.NoError(t, err)
	for _, g := range result.Groups {
		assert.False(t, containsFile(g, "a_test.go"))
	}
}

func TestDetectClonesReportsUnreadableFileAsDiagnostic(t *testing.T) {
	files := source.NewMemory(map[string][]byte{
		"a.go": []byte(addFn),
		"b.go": []byte(addFn),
	})
	cfg := testConfig()

	// "missing.go" isn't in the memory source, so Read fails for it; the
	// run must still complete over a.go/b.go rather than aborting.
	result, err := DetectClones(context.Background(), cfg, []string{"a.go", "b.go", "missing.go"}, files)
	require.NoError(t, err)
	require.NotEmpty(t, result.Groups)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, KindFileIoError, result.Diagnostics[0].Kind)
	assert.Equal(t, "missing.go", result.Diagnostics[0].Path)
}

func TestWorkerCountForcesSingleWorkerWhenSequential(t *testing.T) {
	cfg := testConfig()
	cfg.ParallelMode = config.ParallelSequential
	cfg.MaxConcurrency = 8

	assert.Equal(t, 1, workerCount(cfg), "sequential mode must override MaxConcurrency")
}

func TestWorkerCountUsesMaxConcurrencyOutsideSequential(t *testing.T) {
	cfg := testConfig()
	cfg.ParallelMode = config.ParallelAuto
	cfg.MaxConcurrency = 4

	assert.Equal(t, 4, workerCount(cfg))
}

func TestDetectClonesNearDuplicatesUnderEveryParallelMode(t *testing.T) {
	for _, mode := range []config.ParallelMode{config.ParallelSequential, config.ParallelAuto, config.ParallelAlways} {
		files := source.NewMemory(map[string][]byte{
			"a.go": []byte(addFn),
			"b.go": []byte(sumFn),
		})
		cfg := testConfig()
		cfg.CloneTypes = []config.CloneType{config.CloneTypeNear}
		cfg.ParallelMode = mode

		result, err := DetectClones(context.Background(), cfg, []string{"a.go", "b.go"}, files)
		require.NoError(t, err)

		found := false
		for _, g := range result.Groups {
			if containsFile(g, "a.go") && containsFile(g, "b.go") {
				found = true
			}
		}
		assert.True(t, found, "mode %q must still detect the near-duplicate pair", mode)
	}
}

func TestDetectClonesInvalidConfigReturnsError(t *testing.T) {
	files := source.NewMemory(nil)
	cfg := testConfig()
	cfg.CloneTypes = nil

	_, err := DetectClones(context.Background(), cfg, nil, files)
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindInvalidConfig, cerr.Kind)
}

func TestDetectClonesIncrementalReusesCache(t *testing.T) {
	files := source.NewMemory(map[string][]byte{
		"a.go": []byte(addFn),
		"b.go": []byte(addFn),
	})
	cfg := testConfig()
	cfg.CloneTypes = []config.CloneType{config.CloneTypeExact}
	cache := tokencache.New(t.TempDir())

	first, err := DetectClonesIncremental(context.Background(), cfg, []string{"a.go", "b.go"}, files, cache)
	require.NoError(t, err)
	assert.Equal(t, 0, first.FilesCached)
	assert.Equal(t, 2, first.FilesAnalyzed)

	second, err := DetectClonesIncremental(context.Background(), cfg, []string{"a.go", "b.go"}, files, cache)
	require.NoError(t, err)
	assert.Equal(t, 2, second.FilesCached)
	assert.Equal(t, 0, second.FilesAnalyzed)
	assert.Equal(t, len(first.Groups), len(second.Groups))
}

func TestVerifyStreamingAccumulatesAllBatches(t *testing.T) {
	files := source.NewMemory(map[string][]byte{
		"a.go": []byte(addFn),
		"b.go": []byte(sumFn),
	})
	cfg := testConfig()

	units, diagnostics := extractAll(context.Background(), cfg, []string{"a.go", "b.go"}, files, nil)
	require.Empty(t, diagnostics)
	docs := buildDocuments(units, cfg)
	require.NotEmpty(t, docs)

	var pairs []lsh.Pair
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			pairs = append(pairs, lsh.Pair{A: i, B: j})
		}
	}

	var batches int
	out := VerifyStreaming(context.Background(), pairs, docs, cfg.MinimumSimilarity, 0, func(p verify.Progress) {
		batches++
	})

	assert.Greater(t, batches, 0)
	for _, v := range out {
		assert.GreaterOrEqual(t, v.Similarity, cfg.MinimumSimilarity)
	}
}
