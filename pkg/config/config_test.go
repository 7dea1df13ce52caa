package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 50, cfg.MinimumTokens)
	assert.Equal(t, 0.8, cfg.MinimumSimilarity)
	assert.Equal(t, 128, cfg.NumHashes)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 14, cfg.Alpha)
}

func TestValidateRejectsOutOfRangeSimilarity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinimumSimilarity = 1.5
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejectsEmptyCloneTypes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CloneTypes = nil
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejectsShingleSizeAboveMinimumTokens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShingleSize = cfg.MinimumTokens + 1
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clones.toml")
	contents := `
minimum_tokens = 30
minimum_similarity = 0.9
shingle_size = 4
num_hashes = 64
parallel_mode = "always"
clone_types = ["exact"]
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MinimumTokens)
	assert.Equal(t, 0.9, cfg.MinimumSimilarity)
	assert.Equal(t, ParallelAlways, cfg.ParallelMode)
	assert.Equal(t, []CloneType{CloneTypeExact}, cfg.CloneTypes)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clones.toml")
	require.NoError(t, os.WriteFile(path, []byte("minimum_similarity = 2.0\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	assert.Equal(t, "", FindConfigFile())

	require.NoError(t, os.WriteFile("clones.toml", []byte("minimum_tokens = 10\n"), 0o600))
	assert.Equal(t, "clones.toml", FindConfigFile())
}
