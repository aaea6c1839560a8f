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

// Package metrics holds the Prometheus collectors and the component
// health-status registry exposed at /api/v1.0/health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChunkCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudstream_chunk_cache_hits_total",
		Help: "Number of chunk cache lookups served from disk",
	})

	ChunkCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudstream_chunk_cache_misses_total",
		Help: "Number of chunk cache lookups that required a remote fetch",
	})

	ChunkCacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudstream_chunk_cache_evictions_total",
		Help: "Number of chunk cache entries evicted to stay under the byte budget",
	})

	ChunkCacheUsageBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cloudstream_chunk_cache_usage_bytes",
		Help: "Total bytes currently tracked by the chunk cache index",
	})

	ChunkCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cloudstream_chunk_cache_items",
		Help: "Number of entries in the chunk cache index",
	})

	StreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudstream_stream_requests_total",
		Help: "Stream requests served, by response mode",
	}, []string{"mode"})

	StreamBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudstream_stream_bytes_total",
		Help: "Bytes handed to streaming clients",
	})

	RemoteFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudstream_remote_fetches_total",
		Help: "Remote object store fetches, by kind",
	}, []string{"kind"})

	ComponentHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cloudstream_component_health_status",
		Help: "The health status of various components",
	}, []string{"component"})
)
