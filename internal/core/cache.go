package core

import (
	"sync"
)

// CacheEventKind describes what changed in the result cache
type CacheEventKind int

const (
	CacheUpserted CacheEventKind = iota
	CacheEvicted
	CacheCleared
)

// CacheEvent is delivered to cache listeners after the mutation is applied
type CacheEvent struct {
	Kind   CacheEventKind
	Target string
}

// ResultCache holds the last known result per target, most recently updated first
type ResultCache struct {
	mu        sync.RWMutex
	entries   map[string]*AnalysisResult
	order     []string
	listeners []func(CacheEvent)
}

// NewResultCache creates an empty result cache
func NewResultCache() *ResultCache {
	return &ResultCache{
		entries: make(map[string]*AnalysisResult),
	}
}

// Subscribe registers fn to be called after every mutation
func (c *ResultCache) Subscribe(fn func(CacheEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Upsert inserts or replaces the result for its target and moves it to the front
func (c *ResultCache) Upsert(result *AnalysisResult) {
	if result == nil || result.Target == "" {
		return
	}

	c.mu.Lock()
	if _, ok := c.entries[result.Target]; ok {
		c.removeKey(result.Target)
	}
	c.entries[result.Target] = result
	c.order = append([]string{result.Target}, c.order...)
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, CacheEvent{Kind: CacheUpserted, Target: result.Target})
}

// Evict removes the result for target; absent targets are ignored
func (c *ResultCache) Evict(target string) bool {
	c.mu.Lock()
	if _, ok := c.entries[target]; !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.entries, target)
	c.removeKey(target)
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, CacheEvent{Kind: CacheEvicted, Target: target})
	return true
}

// Get looks up the result for target without side effects
func (c *ResultCache) Get(target string) (*AnalysisResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result, ok := c.entries[target]
	return result, ok
}

// Contains reports whether target has a cached result
func (c *ResultCache) Contains(target string) bool {
	_, ok := c.Get(target)
	return ok
}

// Clear drops every entry
func (c *ResultCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*AnalysisResult)
	c.order = nil
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, CacheEvent{Kind: CacheCleared})
}

// Len returns the number of cached results
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Targets returns the cached targets in iteration order
func (c *ResultCache) Targets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// List returns the cached results in iteration order
func (c *ResultCache) List() []*AnalysisResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*AnalysisResult, 0, len(c.order))
	for _, target := range c.order {
		out = append(out, c.entries[target])
	}
	return out
}

// Aggregate summarises the cache for the dashboard
func (c *ResultCache) Aggregate() Aggregate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	agg := Aggregate{Count: len(c.entries)}
	if agg.Count == 0 {
		return agg
	}

	var sum float64
	for _, target := range c.order {
		result := c.entries[target]
		sum += result.Score
		if result.IsCandidate() {
			agg.Candidates++
		}
	}
	agg.MeanScore = sum / float64(agg.Count)
	return agg
}

// removeKey drops target from the iteration order; caller holds the lock
func (c *ResultCache) removeKey(target string) {
	for i, key := range c.order {
		if key == target {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			return
		}
	}
}

func notify(listeners []func(CacheEvent), ev CacheEvent) {
	for _, fn := range listeners {
		fn(ev)
	}
}
