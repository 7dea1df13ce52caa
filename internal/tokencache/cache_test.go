package tokencache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/omen/pkg/analyzer/clones/token"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	c := New(t.TempDir())
	toks := []token.Token{{Kind: token.KindIdentifier, Raw: "x", Normalized: "VAR_1"}}

	c.Put("a.go", 42, toks)

	got, ok := c.Get("a.go", 42)
	require.True(t, ok)
	assert.Equal(t, toks, got)
}

func TestCacheGetMissesOnHashMismatch(t *testing.T) {
	c := New(t.TempDir())
	c.Put("a.go", 42, []token.Token{{Raw: "x"}})

	_, ok := c.Get("a.go", 99)
	assert.False(t, ok)
}

func TestCacheSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	c.Put("a.go", 1, []token.Token{{Raw: "a", Kind: token.KindIdentifier}})
	c.Put("b.go", 2, []token.Token{{Raw: "b", Kind: token.KindLiteral}})

	require.NoError(t, c.Save())

	loaded := Load(dir)
	assert.Equal(t, 2, loaded.Len())

	got, ok := loaded.Get("a.go", 1)
	require.True(t, ok)
	assert.Equal(t, "a", got[0].Raw)
}

func TestLoadMissingFileYieldsEmptyCache(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Equal(t, 0, c.Len())
}

func TestLoadCorruptFileYieldsEmptyCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("not a real cache file"), 0o600))

	c := Load(dir)
	assert.Equal(t, 0, c.Len())
}

func TestLoadVersionMismatchYieldsEmptyCache(t *testing.T) {
	dir := t.TempDir()
	body := append([]byte(magic), uint32ToBytes(formatVersion+1)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), body, 0o600))

	c := Load(dir)
	assert.Equal(t, 0, c.Len())
}

func TestSaveIsAtomicViaRename(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	c.Put("a.go", 1, []token.Token{{Raw: "a"}})
	require.NoError(t, c.Save())

	_, err := os.Stat(filepath.Join(dir, fileName+tmpSuffix))
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful Save")
}
