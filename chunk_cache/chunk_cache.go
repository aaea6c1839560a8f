/***************************************************************
 *
 * Copyright (C) 2025, CloudStream Studio Project
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

// Package chunk_cache stores previously fetched byte ranges on local disk,
// one file per (objectID, start, end) window, with an in-memory LRU index
// kept under a hard total-byte budget.
//
// The cache owns its data directory exclusively; no other component may
// read or write there.  It self-heals if files disappear out from under it.
package chunk_cache

import (
	"container/list"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/samdjk118/CloudStream-Studio/metrics"
)

const chunkSuffix = ".chunk"

// entry is one cached window.  Entries are destroyed on eviction,
// invalidation, or when their backing file is found missing.
type entry struct {
	key        string
	objectID   string
	start      int64
	end        int64
	size       int64
	path       string
	createdAt  time.Time
	lastAccess time.Time
	hits       int64
	elem       *list.Element
}

// Cache is the disk-backed chunk cache.  All index mutations are serialized
// by the single mutex; the file read backing a hit happens outside the lock
// so disk latency never blocks other index operations.
type Cache struct {
	dir         string
	budget      int64
	lowWaterPct int
	mu          sync.Mutex
	index       map[string]*entry
	lru         *list.List // front = least recently used
	usage       int64
	totalGets   int64
	totalMisses int64
}

// Stats is the summary exposed on the observability endpoint.
type Stats struct {
	Items        int     `json:"items"`
	UsageBytes   int64   `json:"usageBytes"`
	BudgetBytes  int64   `json:"budgetBytes"`
	Utilization  float64 `json:"utilization"`
	TotalGets    int64   `json:"totalGets"`
	TotalMisses  int64   `json:"totalMisses"`
	TotalHits    int64   `json:"totalHits"`
	HitRate      float64 `json:"hitRate"`
	DataLocation string  `json:"dataLocation"`
}

// EntryStats describes a single cached window for the detailed view.
type EntryStats struct {
	Key         string  `json:"key"`
	ObjectID    string  `json:"objectId"`
	Start       int64   `json:"start"`
	End         int64   `json:"end"`
	SizeBytes   int64   `json:"sizeBytes"`
	Hits        int64   `json:"hits"`
	AgeSeconds  float64 `json:"ageSeconds"`
	IdleSeconds float64 `json:"idleSeconds"`
}

// DetailedStats is the summary plus the hottest entries.
type DetailedStats struct {
	Summary  Stats        `json:"summary"`
	TopItems []EntryStats `json:"topItems"`
}

// NewCache opens (or creates) the cache rooted at dir with the given byte
// budget.  Chunk files already present from a previous run are re-indexed;
// if they exceed the budget the least recently used are evicted right away.
func NewCache(dir string, budget int64, lowWaterPct int) (*Cache, error) {
	if budget <= 0 {
		return nil, errors.New("chunk cache budget must be positive")
	}
	if lowWaterPct <= 0 || lowWaterPct > 100 {
		lowWaterPct = 80
	}
	if err := os.MkdirAll(dir, os.FileMode(0700)); err != nil {
		return nil, errors.Wrapf(err, "failed to create chunk cache directory %s", dir)
	}

	c := &Cache{
		dir:         dir,
		budget:      budget,
		lowWaterPct: lowWaterPct,
		index:       make(map[string]*entry),
		lru:         list.New(),
	}
	c.loadExisting()
	log.Infof("Chunk cache initialized at %s (budget %d bytes, %d entries recovered)", dir, budget, len(c.index))
	return c, nil
}

// cacheKey is the content-addressable hash identifying one window.  No
// normalization is done: adjacent or overlapping windows are independent
// entries.
func cacheKey(objectID string, start, end int64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%d", objectID, start, end)))
	return hex.EncodeToString(sum[:])
}

// chunkFileName encodes the object id and window into the file name so the
// index can be rebuilt from a directory scan after a restart.
func chunkFileName(objectID string, start, end int64) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(objectID))
	return fmt.Sprintf("%s.%d-%d%s", encoded, start, end, chunkSuffix)
}

var chunkFileRegex = regexp.MustCompile(`^([A-Za-z0-9_-]+)\.(\d+)-(\d+)\.chunk$`)

// loadExisting scans the data directory and rebuilds the index.  Files that
// do not parse as chunk files are left alone.
func (c *Cache) loadExisting() {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		log.Warningf("Failed to scan chunk cache directory %s: %v", c.dir, err)
		return
	}

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		matches := chunkFileRegex.FindStringSubmatch(de.Name())
		if matches == nil {
			continue
		}
		decoded, err := base64.RawURLEncoding.DecodeString(matches[1])
		if err != nil {
			continue
		}
		start, err := strconv.ParseInt(matches[2], 10, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseInt(matches[3], 10, 64)
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}

		objectID := string(decoded)
		ent := &entry{
			key:        cacheKey(objectID, start, end),
			objectID:   objectID,
			start:      start,
			end:        end,
			size:       info.Size(),
			path:       filepath.Join(c.dir, de.Name()),
			createdAt:  info.ModTime(),
			lastAccess: info.ModTime(),
		}
		ent.elem = c.lru.PushBack(ent)
		c.index[ent.key] = ent
		c.usage += ent.size
	}

	if c.usage > c.budget {
		log.Infof("Recovered chunk cache exceeds budget (%d > %d bytes), evicting", c.usage, c.budget)
		c.evictLocked(c.budget * int64(c.lowWaterPct) / 100)
	}
	metrics.ChunkCacheUsageBytes.Set(float64(c.usage))
	metrics.ChunkCacheItems.Set(float64(len(c.index)))
}

// Get returns the cached bytes for the window, or (nil, false) on a miss.
// A hit bumps the entry's hit count and last-access time and moves it to
// the most-recently-used position.  If the backing file vanished, the entry
// is silently dropped and the call reports a miss.
func (c *Cache) Get(objectID string, start, end int64) ([]byte, bool) {
	key := cacheKey(objectID, start, end)

	c.mu.Lock()
	c.totalGets++
	ent, ok := c.index[key]
	if !ok {
		c.totalMisses++
		c.mu.Unlock()
		metrics.ChunkCacheMissesTotal.Inc()
		log.Debugf("Chunk cache miss for %s bytes %d-%d", objectID, start, end)
		return nil, false
	}
	ent.lastAccess = time.Now()
	ent.hits++
	c.lru.MoveToBack(ent.elem)
	path := ent.path
	c.mu.Unlock()

	// File read happens outside the lock.
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warningf("Chunk cache file missing on disk, dropping index entry: %s", path)
		} else {
			log.Errorf("Failed to read chunk cache file %s: %v", path, err)
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warningf("Failed to remove unreadable chunk file %s: %v", path, rmErr)
			}
		}
		c.dropEntry(key)
		metrics.ChunkCacheMissesTotal.Inc()
		return nil, false
	}

	metrics.ChunkCacheHitsTotal.Inc()
	log.Debugf("Chunk cache hit for %s bytes %d-%d (%d bytes)", objectID, start, end, len(data))
	return data, true
}

// dropEntry removes a (possibly stale) index entry after a failed disk
// read, repairing the index without surfacing an error.
func (c *Cache) dropEntry(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.index[key]; ok {
		c.lru.Remove(ent.elem)
		delete(c.index, key)
		c.usage -= ent.size
		c.totalMisses++
		metrics.ChunkCacheUsageBytes.Set(float64(c.usage))
		metrics.ChunkCacheItems.Set(float64(len(c.index)))
	}
}

// Set stores data for the window, evicting least-recently-used entries
// first if the insert would push tracked bytes over the budget.  Eviction
// aims at 80% of the budget, or lower if that still would not leave room
// for the incoming entry.
func (c *Cache) Set(objectID string, start, end int64, data []byte) error {
	size := int64(len(data))
	if size > c.budget {
		log.Warningf("Chunk of %d bytes exceeds entire cache budget %d; not caching %s bytes %d-%d",
			size, c.budget, objectID, start, end)
		return nil
	}

	key := cacheKey(objectID, start, end)
	path := filepath.Join(c.dir, chunkFileName(objectID, start, end))

	if err := os.WriteFile(path, data, os.FileMode(0600)); err != nil {
		return errors.Wrapf(err, "failed to write chunk cache file %s", path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replacing an existing window reclaims the old accounting first.
	if old, ok := c.index[key]; ok {
		c.lru.Remove(old.elem)
		delete(c.index, key)
		c.usage -= old.size
	}

	if c.usage+size > c.budget {
		target := c.budget * int64(c.lowWaterPct) / 100
		if c.budget-size < target {
			target = c.budget - size
		}
		log.Infof("Chunk cache over budget (%d + %d > %d bytes), evicting to %d",
			c.usage, size, c.budget, target)
		c.evictLocked(target)
	}

	now := time.Now()
	ent := &entry{
		key:        key,
		objectID:   objectID,
		start:      start,
		end:        end,
		size:       size,
		path:       path,
		createdAt:  now,
		lastAccess: now,
	}
	ent.elem = c.lru.PushBack(ent)
	c.index[key] = ent
	c.usage += size

	metrics.ChunkCacheUsageBytes.Set(float64(c.usage))
	metrics.ChunkCacheItems.Set(float64(len(c.index)))
	log.Debugf("Cached chunk %s bytes %d-%d (%d bytes, usage %d/%d)",
		objectID, start, end, size, c.usage, c.budget)
	return nil
}

// evictLocked removes least-recently-used entries until tracked usage is at
// or below target.  Caller holds c.mu.
func (c *Cache) evictLocked(target int64) {
	if target < 0 {
		target = 0
	}
	removed := 0
	freed := int64(0)
	for c.usage > target && c.lru.Len() > 0 {
		ent := c.lru.Front().Value.(*entry)
		c.removeLocked(ent)
		removed++
		freed += ent.size
		metrics.ChunkCacheEvictionsTotal.Inc()
	}
	if removed > 0 {
		log.Infof("Evicted %d chunk(s), freed %d bytes", removed, freed)
	}
}

// removeLocked deletes an entry's file and index record.  Caller holds c.mu.
func (c *Cache) removeLocked(ent *entry) {
	if err := os.Remove(ent.path); err != nil && !os.IsNotExist(err) {
		log.Warningf("Failed to delete chunk cache file %s: %v", ent.path, err)
	}
	c.lru.Remove(ent.elem)
	delete(c.index, ent.key)
	c.usage -= ent.size
}

// Invalidate removes every cached window belonging to objectID.  The index
// keeps the plaintext object id per entry precisely so this scan is
// possible despite hashed cache keys.
func (c *Cache) Invalidate(objectID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	victims := make([]*entry, 0)
	for _, ent := range c.index {
		if ent.objectID == objectID {
			victims = append(victims, ent)
		}
	}
	for _, ent := range victims {
		c.removeLocked(ent)
	}
	if len(victims) > 0 {
		log.Infof("Invalidated %d cached chunk(s) for %s", len(victims), objectID)
		metrics.ChunkCacheUsageBytes.Set(float64(c.usage))
		metrics.ChunkCacheItems.Set(float64(len(c.index)))
	}
	return len(victims)
}

// Clear removes every entry and its backing file.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := len(c.index)
	freed := c.usage
	for _, ent := range c.index {
		if err := os.Remove(ent.path); err != nil && !os.IsNotExist(err) {
			log.Warningf("Failed to delete chunk cache file %s: %v", ent.path, err)
		}
	}
	c.index = make(map[string]*entry)
	c.lru = list.New()
	c.usage = 0
	metrics.ChunkCacheUsageBytes.Set(0)
	metrics.ChunkCacheItems.Set(0)
	log.Infof("Chunk cache cleared: %d entries, %d bytes", count, freed)
}

// Usage returns the total bytes currently tracked by the index.
func (c *Cache) Usage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Stats returns the summary counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Cache) statsLocked() Stats {
	hits := c.totalGets - c.totalMisses
	hitRate := 0.0
	if c.totalGets > 0 {
		hitRate = float64(hits) / float64(c.totalGets)
	}
	return Stats{
		Items:        len(c.index),
		UsageBytes:   c.usage,
		BudgetBytes:  c.budget,
		Utilization:  float64(c.usage) / float64(c.budget),
		TotalGets:    c.totalGets,
		TotalMisses:  c.totalMisses,
		TotalHits:    hits,
		HitRate:      hitRate,
		DataLocation: c.dir,
	}
}

// DetailedStats returns the summary plus the topN entries by hit count.
func (c *Cache) DetailedStats(topN int) DetailedStats {
	if topN <= 0 {
		topN = 10
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	items := make([]EntryStats, 0, len(c.index))
	for _, ent := range c.index {
		items = append(items, EntryStats{
			Key:         ent.key,
			ObjectID:    ent.objectID,
			Start:       ent.start,
			End:         ent.end,
			SizeBytes:   ent.size,
			Hits:        ent.hits,
			AgeSeconds:  now.Sub(ent.createdAt).Seconds(),
			IdleSeconds: now.Sub(ent.lastAccess).Seconds(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Hits > items[j].Hits })
	if len(items) > topN {
		items = items[:topN]
	}
	return DetailedStats{
		Summary:  c.statsLocked(),
		TopItems: items,
	}
}
