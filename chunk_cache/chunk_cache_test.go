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

package chunk_cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, budget int64) *Cache {
	cache, err := NewCache(t.TempDir(), budget, 80)
	require.NoError(t, err)
	return cache
}

func TestSetThenGetRoundTrip(t *testing.T) {
	cache := newTestCache(t, 1024)

	require.NoError(t, cache.Set("movie.mp4", 0, 3, []byte("abcd")))

	data, hit := cache.Get("movie.mp4", 0, 3)
	require.True(t, hit)
	assert.Equal(t, []byte("abcd"), data)

	// A different window of the same object is its own entry.
	_, hit = cache.Get("movie.mp4", 4, 7)
	assert.False(t, hit)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Items)
	assert.Equal(t, int64(4), stats.UsageBytes)
	assert.Equal(t, int64(2), stats.TotalGets)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMisses)
}

func TestSetIsIdempotentPerWindow(t *testing.T) {
	cache := newTestCache(t, 1024)

	require.NoError(t, cache.Set("movie.mp4", 0, 3, []byte("abcd")))
	require.NoError(t, cache.Set("movie.mp4", 0, 3, []byte("abcd")))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Items)
	assert.Equal(t, int64(4), stats.UsageBytes)

	data, hit := cache.Get("movie.mp4", 0, 3)
	require.True(t, hit)
	assert.Equal(t, []byte("abcd"), data)
}

func TestEvictionPreservesMostRecentlyUsed(t *testing.T) {
	// Budget of 10 bytes holds two 4-byte chunks but not three.
	cache := newTestCache(t, 10)

	require.NoError(t, cache.Set("movie.mp4", 0, 3, []byte("aaaa")))
	require.NoError(t, cache.Set("movie.mp4", 4, 7, []byte("bbbb")))

	// Touch B so A is the least recently used.
	_, hit := cache.Get("movie.mp4", 4, 7)
	require.True(t, hit)

	require.NoError(t, cache.Set("movie.mp4", 8, 11, []byte("cccc")))

	_, hit = cache.Get("movie.mp4", 0, 3)
	assert.False(t, hit, "least recently used chunk should have been evicted")
	_, hit = cache.Get("movie.mp4", 4, 7)
	assert.True(t, hit)
	_, hit = cache.Get("movie.mp4", 8, 11)
	assert.True(t, hit)
	assert.LessOrEqual(t, cache.Usage(), int64(10))
}

func TestOversizedChunkIsNotCached(t *testing.T) {
	cache := newTestCache(t, 10)

	require.NoError(t, cache.Set("movie.mp4", 0, 99, make([]byte, 100)))
	assert.Equal(t, int64(0), cache.Usage())
	_, hit := cache.Get("movie.mp4", 0, 99)
	assert.False(t, hit)
}

func TestInvalidateRemovesOnlyTargetObject(t *testing.T) {
	cache := newTestCache(t, 1024)

	require.NoError(t, cache.Set("a.mp4", 0, 3, []byte("aaaa")))
	require.NoError(t, cache.Set("a.mp4", 4, 7, []byte("AAAA")))
	require.NoError(t, cache.Set("b.mp4", 0, 3, []byte("bbbb")))

	removed := cache.Invalidate("a.mp4")
	assert.Equal(t, 2, removed)

	_, hit := cache.Get("a.mp4", 0, 3)
	assert.False(t, hit)
	_, hit = cache.Get("a.mp4", 4, 7)
	assert.False(t, hit)
	data, hit := cache.Get("b.mp4", 0, 3)
	require.True(t, hit)
	assert.Equal(t, []byte("bbbb"), data)
	assert.Equal(t, int64(4), cache.Usage())
}

func TestClearEmptiesCacheAndDisk(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir, 1024, 80)
	require.NoError(t, err)

	require.NoError(t, cache.Set("a.mp4", 0, 3, []byte("aaaa")))
	require.NoError(t, cache.Set("b.mp4", 0, 3, []byte("bbbb")))

	cache.Clear()
	assert.Equal(t, int64(0), cache.Usage())
	assert.Equal(t, 0, cache.Stats().Items)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMissingFileSelfHeals(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir, 1024, 80)
	require.NoError(t, err)

	require.NoError(t, cache.Set("movie.mp4", 0, 3, []byte("abcd")))

	// Delete the backing file out from under the index.
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, os.Remove(filepath.Join(dir, files[0].Name())))

	_, hit := cache.Get("movie.mp4", 0, 3)
	assert.False(t, hit)
	assert.Equal(t, 0, cache.Stats().Items)
	assert.Equal(t, int64(0), cache.Usage())

	// The cache keeps working for the same window afterwards.
	require.NoError(t, cache.Set("movie.mp4", 0, 3, []byte("abcd")))
	data, hit := cache.Get("movie.mp4", 0, 3)
	require.True(t, hit)
	assert.Equal(t, []byte("abcd"), data)
}

func TestStartupScanRecoversEntries(t *testing.T) {
	dir := t.TempDir()
	first, err := NewCache(dir, 1024, 80)
	require.NoError(t, err)
	require.NoError(t, first.Set("movie.mp4", 0, 3, []byte("abcd")))
	require.NoError(t, first.Set("other.mp4", 10, 13, []byte("wxyz")))

	// A second cache over the same directory rebuilds the index from disk.
	second, err := NewCache(dir, 1024, 80)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Stats().Items)
	assert.Equal(t, int64(8), second.Usage())

	data, hit := second.Get("movie.mp4", 0, 3)
	require.True(t, hit)
	assert.Equal(t, []byte("abcd"), data)

	// The recovered index still supports invalidation by object id.
	assert.Equal(t, 1, second.Invalidate("other.mp4"))
}

func TestStartupScanEvictsPastBudget(t *testing.T) {
	dir := t.TempDir()
	first, err := NewCache(dir, 1024, 80)
	require.NoError(t, err)
	require.NoError(t, first.Set("a.mp4", 0, 3, []byte("aaaa")))
	require.NoError(t, first.Set("b.mp4", 0, 3, []byte("bbbb")))
	require.NoError(t, first.Set("c.mp4", 0, 3, []byte("cccc")))

	// Reopen with a budget too small for all three recovered chunks.
	second, err := NewCache(dir, 8, 80)
	require.NoError(t, err)
	assert.LessOrEqual(t, second.Usage(), int64(8))
	assert.Less(t, second.Stats().Items, 3)
}

func TestStartupScanIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0600))

	cache, err := NewCache(dir, 1024, 80)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Stats().Items)
	assert.Equal(t, int64(0), cache.Usage())
}

func TestDetailedStatsOrdersByHits(t *testing.T) {
	cache := newTestCache(t, 1024)

	require.NoError(t, cache.Set("hot.mp4", 0, 3, []byte("aaaa")))
	require.NoError(t, cache.Set("cold.mp4", 0, 3, []byte("bbbb")))
	for idx := 0; idx < 3; idx++ {
		_, hit := cache.Get("hot.mp4", 0, 3)
		require.True(t, hit)
	}

	detailed := cache.DetailedStats(1)
	require.Len(t, detailed.TopItems, 1)
	assert.Equal(t, "hot.mp4", detailed.TopItems[0].ObjectID)
	assert.Equal(t, int64(3), detailed.TopItems[0].Hits)
	assert.Equal(t, 2, detailed.Summary.Items)
}
