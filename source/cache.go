package source

import (
	"fmt"
	"sync"

	"lakebridge/model"
)

// ActionList is the per-version set of source-native actions (Delta add/
// remove entries, Iceberg manifest deltas, Hudi instant metadata) a format
// adapter parsed while computing a CommitPlan. It is cached opaquely here;
// only the owning adapter package interprets its contents.
type ActionList struct {
	Version model.VersionToken
	Actions any
}

// ChangesCache is the bounded, single-writer, in-memory cache an adapter
// keeps across the calls of one sync round: populated once by
// GetCommitState's range scan, then reused by the GetCommit calls that
// follow for the same round. Keyed by (basePath, startVersion) the way a
// cache line covers one incremental-sync request, mirroring the
// mutex-guarded cache shape of a relation-schema cache, generalized from a
// single entry per key to a list of per-version action lists per key. The
// bound applies to the number of keys (cache lines), not to the length of
// each line.
type ChangesCache struct {
	mu       sync.Mutex
	maxLines int
	lines    map[string][]ActionList
	order    []string
}

// NewChangesCache builds a cache holding at most maxEntries cache lines
// (one line per (basePath, startVersion) key); entries beyond that are
// evicted oldest-first. A maxEntries of 0 disables bounding.
func NewChangesCache(maxEntries int) *ChangesCache {
	return &ChangesCache{maxLines: maxEntries, lines: make(map[string][]ActionList)}
}

func cacheKey(basePath string, start model.VersionToken) string {
	return fmt.Sprintf("%s@%s", basePath, start.Raw)
}

// Put stores the parsed action lists for a (basePath, startVersion) range.
func (c *ChangesCache) Put(basePath string, start model.VersionToken, actions []ActionList) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(basePath, start)
	if _, exists := c.lines[key]; !exists {
		c.order = append(c.order, key)
	}
	c.lines[key] = actions
	c.evictLocked()
}

// Get retrieves the action list for v from the cache line covering
// (basePath, start), if present.
func (c *ChangesCache) Get(basePath string, start model.VersionToken, v model.VersionToken) (ActionList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[cacheKey(basePath, start)]
	if !ok {
		return ActionList{}, false
	}
	for _, a := range line {
		if a.Version == v {
			return a, true
		}
	}
	return ActionList{}, false
}

// Invalidate drops every cache line. Called at round end or when an
// adapter is reinitialized; a stale cache line must never outlive the
// round that populated it.
func (c *ChangesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = make(map[string][]ActionList)
	c.order = nil
}

func (c *ChangesCache) evictLocked() {
	if c.maxLines <= 0 {
		return
	}
	for len(c.order) > c.maxLines {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.lines, oldest)
	}
}
