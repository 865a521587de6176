package toolengine

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheEntry holds a cached tool result along with its validity window.
// Invariant: expiresAt > createdAt.
type cacheEntry struct {
	content   any
	createdAt time.Time
	expiresAt time.Time
}

// resultCache stores successful results of cacheable tools, keyed by
// (toolName + normalised arguments). Capacity overflow evicts the oldest
// entry; expired entries are dropped on lookup and by the engine's
// background sweep.
type resultCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
}

func newResultCache(maxSize int, ttl time.Duration) (*resultCache, error) {
	entries, err := lru.New[string, cacheEntry](maxSize)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	return &resultCache{entries: entries, ttl: ttl}, nil
}

// get returns a non-expired entry. Expired entries are evicted so the LRU
// bookkeeping stays clean.
func (c *resultCache) get(key string, now time.Time) (any, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !now.Before(entry.expiresAt) {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.content, true
}

func (c *resultCache) put(key string, content any, now time.Time) {
	c.entries.Add(key, cacheEntry{
		content:   content,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	})
}

// sweep removes every expired entry, independent of lookups. Peek avoids
// disturbing recency order for entries that survive.
func (c *resultCache) sweep(now time.Time) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		if entry, ok := c.entries.Peek(key); ok && !now.Before(entry.expiresAt) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

func (c *resultCache) len() int {
	return c.entries.Len()
}

// cacheKey produces a deterministic key from tool name + arguments so that
// semantically identical parameter sets with different key order collide.
func cacheKey(toolName string, args map[string]any) string {
	return fmt.Sprintf("%s:%s", toolName, normalizeArgs(args))
}

// normalizeArgs serialises a map[string]any into a deterministic JSON
// string. json.Marshal sorts map keys, so only nested maps need converting
// to the same concrete type.
func normalizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(sortedMap(args))
	if err != nil {
		return "{}"
	}
	return string(data)
}

func sortedMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			v = sortedMap(nested)
		}
		out[k] = v
	}
	return out
}
