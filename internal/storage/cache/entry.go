package cache

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// entry is one cached value with its eviction bookkeeping. value is replaced
// only under the category write lock; lastAccess and leases are updated
// under the read lock.
type entry[T any] struct {
	value      T
	lastAccess atomic.Int64 // unix nanoseconds
	leases     atomic.Int32
}

func newEntry[T any](v T, now time.Time) *entry[T] {
	e := &entry[T]{value: v}
	e.touch(now)
	return e
}

func (e *entry[T]) touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
}

// expired reports whether the entry may be evicted at now.
func (e *entry[T]) expired(now time.Time, lifetime time.Duration) bool {
	if e.leases.Load() > 0 {
		return false
	}
	return now.UnixNano()-e.lastAccess.Load() >= int64(lifetime)
}

// category is one independently locked map of entries.
type category[T any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[T]
}

func (c *category[T]) init() {
	c.entries = make(map[string]*entry[T])
}

// get returns the value stored under id and refreshes its access time.
func (c *category[T]) get(id string, now time.Time) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	e.touch(now)
	return e.value, true
}

// acquire is get plus a lease. release drops the lease exactly once.
func (c *category[T]) acquire(id string, clock func() time.Time) (T, func(), bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		var zero T
		return zero, nil, false
	}
	e.leases.Add(1)
	e.touch(clock())

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.touch(clock())
			e.leases.Add(-1)
		})
	}
	return e.value, release, true
}

// insert stores v under id unless an entry exists.
func (c *category[T]) insert(id string, v T, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		return false
	}
	c.entries[id] = newEntry(v, now)
	return true
}

// replace swaps the value of an existing entry. update receives the old
// value and returns the new one.
func (c *category[T]) replace(id string, now time.Time, update func(old T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	e.value = update(e.value)
	e.touch(now)
	return true
}

// put stores v under id, keeping the leases of an existing entry.
func (c *category[T]) put(id string, v T, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.value = v
		e.touch(now)
		return
	}
	c.entries[id] = newEntry(v, now)
}

// rewrite replaces every value for which update reports a change.
func (c *category[T]) rewrite(update func(id string, v T) (T, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if v, changed := update(id, e.value); changed {
			e.value = v
		}
	}
}

func (c *category[T]) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *category[T]) find(match func(T) bool, now time.Time) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if match(e.value) {
			e.touch(now)
			return e.value, true
		}
	}
	var zero T
	return zero, false
}

// sweep evicts expired entries. A category that is busy is skipped until
// the next tick.
func (c *category[T]) sweep(now time.Time, lifetime time.Duration) int {
	if !c.mu.TryLock() {
		return 0
	}
	defer c.mu.Unlock()
	evicted := 0
	for id, e := range c.entries {
		if e.expired(now, lifetime) {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

func (c *category[T]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *category[T]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// idSet is the value type of the relation categories. A stored slice is
// never modified in place.
type idSet []string

func (s idSet) with(id string) idSet {
	if slices.Contains(s, id) {
		return s
	}
	return append(slices.Clip(s), id)
}

func (s idSet) without(id string) idSet {
	i := slices.Index(s, id)
	if i < 0 {
		return s
	}
	return slices.Delete(slices.Clone(s), i, i+1)
}

func newIDSet(ids []string) idSet {
	out := make(idSet, 0, len(ids))
	for _, id := range ids {
		out = out.with(id)
	}
	return out
}
