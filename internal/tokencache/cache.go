// Package tokencache persists extracted token sequences keyed by file
// path and content hash, so a later incremental run can skip
// re-extracting and re-shingling unchanged files (C9). It generalizes
// the teacher's per-key JSON-on-disk internal/cache into a single-file,
// versioned, atomically-written store, keeping the teacher's 0600/0700
// permission discipline.
package tokencache

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/panbanda/omen/pkg/analyzer/clones/token"
)

// magic identifies the on-disk format; version guards against breaking
// changes to onDiskEntry's shape.
const (
	magic          = "OMNC"
	formatVersion  = uint32(1)
	fileName       = "tokens.dat"
	tmpSuffix      = ".tmp"
	dirPermission  = 0o700
	filePermission = 0o600
)

// onDiskEntry is one file's cached extraction result.
type onDiskEntry struct {
	ContentHash uint64
	Tokens      []token.Token
}

// Cache is a single-owner-writer, multi-reader in-memory view of the
// token cache, guarded by a RWMutex, periodically flushed to disk with
// Save.
type Cache struct {
	mu      sync.RWMutex
	dir     string
	entries map[string]onDiskEntry
}

// New creates an empty cache rooted at dir. The directory is not created
// until Save is called.
func New(dir string) *Cache {
	return &Cache{dir: dir, entries: make(map[string]onDiskEntry)}
}

// Load reads the cache file from dir. A missing, version-mismatched, or
// corrupt file yields an empty cache, never an error — a cold or broken
// cache is equivalent to "nothing is cached yet", not a failure
// (spec.md's CacheIoError load policy: incremental analysis degrades to
// full re-analysis, it never aborts).
func Load(dir string) *Cache {
	c := New(dir)

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		return c
	}
	if len(data) < len(magic)+4 || string(data[:len(magic)]) != magic {
		return c
	}
	version := bytesToUint32(data[len(magic) : len(magic)+4])
	if version != formatVersion {
		return c
	}

	var entries map[string]onDiskEntry
	dec := gob.NewDecoder(bytes.NewReader(data[len(magic)+4:]))
	if err := dec.Decode(&entries); err != nil {
		return c
	}
	c.entries = entries
	return c
}

// Get returns the cached tokens for path if present and contentHash
// matches exactly — any mismatch (including a changed file) is a miss.
func (c *Cache) Get(path string, contentHash uint64) ([]token.Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[path]
	if !ok || entry.ContentHash != contentHash {
		return nil, false
	}
	return entry.Tokens, true
}

// Put records path's extracted tokens under contentHash, replacing any
// prior entry for path.
func (c *Cache) Put(path string, contentHash uint64, tokens []token.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = onDiskEntry{ContentHash: contentHash, Tokens: tokens}
}

// Len reports how many files have a cached entry.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save atomically writes the cache to <dir>/tokens.dat: it encodes to a
// temp file in the same directory, then renames it into place, so a
// crash mid-write never corrupts the previous version readers saw.
func (c *Cache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(c.dir, dirPermission); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(c.entries); err != nil {
		return err
	}

	var out bytes.Buffer
	out.WriteString(magic)
	out.Write(uint32ToBytes(formatVersion))
	out.Write(body.Bytes())

	tmpPath := filepath.Join(c.dir, fileName+tmpSuffix)
	if err := os.WriteFile(tmpPath, out.Bytes(), filePermission); err != nil {
		return err
	}
	return os.Rename(tmpPath, filepath.Join(c.dir, fileName))
}

func uint32ToBytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func bytesToUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
