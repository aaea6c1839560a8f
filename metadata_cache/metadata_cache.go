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

// Package metadata_cache keeps a capacity-bounded LRU of object metadata in
// front of the remote store.  Entries never expire on their own; any
// component that mutates an object must call Invalidate.
package metadata_cache

import (
	"context"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"

	"github.com/samdjk118/CloudStream-Studio/remote"
)

// Cache maps object id to its metadata record.  A lookup miss fetches
// synchronously through the connection manager; on a credential-refresh
// failure the whole cache is dropped (entries may have been fetched under
// the soon-to-be-invalid credentials) before the single retry.
type Cache struct {
	manager  *remote.Manager
	capacity int
	entries  *ttlcache.Cache[string, *remote.Metadata]
}

// Stats summarizes cache effectiveness.
type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	HitRate  float64 `json:"hitRate"`
}

// New creates a metadata cache holding at most capacity records, evicting
// the least recently used record when full.
func New(manager *remote.Manager, capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	entries := ttlcache.New[string, *remote.Metadata](
		ttlcache.WithCapacity[string, *remote.Metadata](uint64(capacity)),
	)
	return &Cache{
		manager:  manager,
		capacity: capacity,
		entries:  entries,
	}
}

// Get returns the metadata for objectID, fetching it from the remote store
// on a miss.  A nonexistent object yields remote.ErrNotFound (checkable via
// remote.IsNotFound); that outcome is not cached, so an object created
// later becomes visible immediately.
func (mc *Cache) Get(ctx context.Context, objectID string) (*remote.Metadata, error) {
	if item := mc.entries.Get(objectID); item != nil {
		log.Debugf("Metadata cache hit for %s", objectID)
		return item.Value(), nil
	}

	// Miss: the network fetch runs without holding any cache lock.
	var meta *remote.Metadata
	err := mc.manager.WithConnection(ctx, mc.Clear, func(s remote.Store) error {
		fetched, err := s.FetchMetadata(ctx, objectID)
		if err != nil {
			return err
		}
		meta = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	mc.entries.Set(objectID, meta, ttlcache.NoTTL)
	log.Debugf("Metadata cached for %s (%d bytes, %s)", objectID, meta.Size, meta.ContentType)
	return meta, nil
}

// Invalidate drops the record for objectID.  Must be called after any
// mutation of the object (upload, delete, rename); the cache has no TTL and
// never expires entries on its own.
func (mc *Cache) Invalidate(objectID string) {
	mc.entries.Delete(objectID)
}

// Clear drops every record.
func (mc *Cache) Clear() {
	log.Infoln("Clearing metadata cache")
	mc.entries.DeleteAll()
}

// Stats reports hit/miss counters and current occupancy.
func (mc *Cache) Stats() Stats {
	m := mc.entries.Metrics()
	total := m.Hits + m.Misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(m.Hits) / float64(total)
	}
	return Stats{
		Hits:     m.Hits,
		Misses:   m.Misses,
		Size:     mc.entries.Len(),
		Capacity: mc.capacity,
		HitRate:  hitRate,
	}
}
