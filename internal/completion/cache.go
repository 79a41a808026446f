package completion

import (
	"strings"
	"sync"
)

// Cache holds the last resolved scripts together with the directory they were
// resolved in and the workspace root it belongs to. A Cache is owned by one
// host session and shared by every resolution in it.
type Cache struct {
	mu            sync.Mutex
	path          string
	workspaceRoot string
	primed        bool
	scripts       []string
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// invalidateOutside clears the cache when currentDir no longer contains the
// cached workspace root. It reports whether anything was cleared.
func (c *Cache) invalidateOutside(currentDir string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed {
		return false
	}
	if strings.Contains(stripTrailingSlash(currentDir), stripTrailingSlash(c.workspaceRoot)) {
		return false
	}

	c.path = ""
	c.workspaceRoot = ""
	c.primed = false
	c.scripts = nil
	return true
}

// isPrimed reports whether a path and workspace root are recorded.
func (c *Cache) isPrimed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primed
}

// prime records the directory and workspace root and resets the scripts.
func (c *Cache) prime(path, workspaceRoot string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.path = path
	c.workspaceRoot = workspaceRoot
	c.primed = true
	c.scripts = []string{}
}

// storeIfEmpty saves scripts unless another resolution already filled the cache.
func (c *Cache) storeIfEmpty(scripts []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.scripts) == 0 {
		c.scripts = append([]string(nil), scripts...)
	}
}

// Path returns the directory recorded at the last root discovery.
func (c *Cache) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// WorkspaceRoot returns the cached workspace root and whether one is set.
func (c *Cache) WorkspaceRoot() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workspaceRoot, c.primed
}

// Scripts returns a copy of the cached script names.
func (c *Cache) Scripts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.scripts...)
}

func stripTrailingSlash(s string) string {
	return strings.TrimSuffix(s, "/")
}
