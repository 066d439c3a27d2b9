package parity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Dryxio/auto-re-agent/internal/core"
)

// Cache is a file-based cache for raw decompile/ASM output, keyed by
// normalized address. Survives between batch runs so repeated parity
// passes do not re-query the decompiler.
type Cache struct {
	dir string
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(prefix, address string) string {
	return filepath.Join(c.dir, prefix+"-"+core.NormalizeAddress(address)+".txt")
}

// Get returns the cached content, or "" and false on a miss.
func (c *Cache) Get(prefix, address string) (string, bool) {
	data, err := os.ReadFile(c.path(prefix, address))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Put stores content under the prefix and address.
func (c *Cache) Put(prefix, address, content string) error {
	return os.WriteFile(c.path(prefix, address), []byte(content), 0o644)
}

// Has reports whether an entry exists.
func (c *Cache) Has(prefix, address string) bool {
	_, err := os.Stat(c.path(prefix, address))
	return err == nil
}

// Clear removes every cached file.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
