// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

// Package cache keeps timestamped snapshots of chain state by path. Entries
// are never evicted in the background: readers pass their own max age and
// refresh on a miss.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/ChainSafe/log15"
	"github.com/fxamacker/cbor/v2"
	"subspace-client/utils/metrics"
)

const (
	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupExpired = "expired"
	lookupError   = "error"
)

// Cache is owned by one client and shared with its components by pointer.
type Cache struct {
	store   Store
	now     func() time.Time
	lock    sync.Mutex
	pending map[string]bool
	log     log15.Logger
}

func New(store Store, log log15.Logger) *Cache {
	return &Cache{
		store:   store,
		now:     time.Now,
		pending: make(map[string]bool),
		log:     log,
	}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = now
}

// Get decodes the entry at path into out when it is at most maxAge old and
// reports whether it did. On a miss out is left untouched and the path is
// marked for refresh. A negative maxAge disables the cache.
func (c *Cache) Get(path string, maxAge time.Duration, out interface{}) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if maxAge < 0 {
		c.pending[path] = true
		metrics.RecordCacheLookup(lookupMiss)
		return false
	}
	rec, ok, err := c.store.Get(path)
	if err != nil {
		c.log.Warn("cache read failed", "path", path, "err", err)
		c.pending[path] = true
		metrics.RecordCacheLookup(lookupError)
		return false
	}
	if !ok {
		c.pending[path] = true
		metrics.RecordCacheLookup(lookupMiss)
		return false
	}
	if c.now().Sub(rec.UpdatedAt) > maxAge {
		c.pending[path] = true
		metrics.RecordCacheLookup(lookupExpired)
		return false
	}
	if err := cbor.Unmarshal(rec.Value, out); err != nil {
		c.log.Warn("cache entry undecodable", "path", path, "err", err)
		c.pending[path] = true
		metrics.RecordCacheLookup(lookupError)
		return false
	}
	metrics.RecordCacheLookup(lookupHit)
	return true
}

// Put replaces the entry at path, stamped with the current time.
func (c *Cache) Put(path string, value interface{}) error {
	bz, err := cbor.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s err: %w", path, err)
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.store.Put(Record{Path: path, Value: bz, UpdatedAt: c.now()}); err != nil {
		return err
	}
	delete(c.pending, path)
	return nil
}

// UpdatedAt returns the time the entry at path was written.
func (c *Cache) UpdatedAt(path string) (time.Time, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	rec, ok, err := c.store.Get(path)
	if err != nil || !ok {
		return time.Time{}, false
	}
	return rec.UpdatedAt, true
}

// NeedsRefresh reports whether the last read of path missed.
func (c *Cache) NeedsRefresh(path string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pending[path]
}

// Invalidate drops the entry at path.
func (c *Cache) Invalidate(path string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, err := c.store.Delete(path); err != nil {
		return err
	}
	c.pending[path] = true
	return nil
}

// Clear drops every entry under any of prefixes and returns how many went.
func (c *Cache) Clear(prefixes ...string) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	total := 0
	for _, prefix := range prefixes {
		n, err := c.store.DeletePrefix(prefix)
		if err != nil {
			return total, err
		}
		c.log.Debug("cache cleared", "prefix", prefix, "entries", n)
		total += n
	}
	return total, nil
}

func (c *Cache) Paths(prefix string) ([]string, error) {
	return c.store.Paths(prefix)
}

func (c *Cache) Close() error {
	return c.store.Close()
}
