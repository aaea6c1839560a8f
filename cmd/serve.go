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

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/samdjk118/CloudStream-Studio/chunk_cache"
	"github.com/samdjk118/CloudStream-Studio/config"
	"github.com/samdjk118/CloudStream-Studio/media"
	"github.com/samdjk118/CloudStream-Studio/metadata_cache"
	"github.com/samdjk118/CloudStream-Studio/metrics"
	"github.com/samdjk118/CloudStream-Studio/param"
	"github.com/samdjk118/CloudStream-Studio/remote"
	"github.com/samdjk118/CloudStream-Studio/streaming"
	"github.com/samdjk118/CloudStream-Studio/web_ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streaming server",
	RunE:  serveMain,
}

func serveMain(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	egrp, ctx := errgroup.WithContext(ctx)

	manager := remote.NewManager(remote.NewHTTPStoreFromConfig)

	metadataCache := metadata_cache.New(manager, param.MetadataCache_Capacity.GetInt())

	chunkBudget := config.ParseBytes(param.ChunkCache_Size, 1<<30)
	chunkCache, err := chunk_cache.NewCache(
		param.ChunkCache_DataLocation.GetString(),
		chunkBudget,
		param.ChunkCache_LowWaterMarkPercentage.GetInt(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to initialize the chunk cache")
	}

	orchestrator := streaming.NewOrchestrator(manager, metadataCache, chunkCache, streaming.Config{
		MaxUnboundedRangeSize: config.ParseBytes(param.Stream_MaxUnboundedRangeSize, 20<<20),
		MaxRangeChunkSize:     config.ParseBytes(param.Stream_MaxRangeChunkSize, 10<<20),
		FullBufferThreshold:   config.ParseBytes(param.Stream_FullBufferThreshold, 50<<20),
		StreamChunkSize:       config.ParseBytes(param.Stream_ChunkSize, 2<<20),
	})
	mediaService := media.NewService(manager, orchestrator)

	engine, err := web_ui.GetEngine()
	if err != nil {
		return errors.Wrap(err, "failed to configure the web engine")
	}
	rootGroup := engine.Group("/")
	orchestrator.Register(rootGroup)
	chunkCache.Register(rootGroup)
	mediaService.Register(rootGroup)

	egrp.Go(func() error {
		return healthLoop(ctx, orchestrator)
	})
	egrp.Go(func() error {
		return web_ui.RunEngine(engine)
	})

	log.Infoln("CloudStream server started; serving objects from", param.Remote_Url.GetString())
	return egrp.Wait()
}

// healthLoop periodically probes remote connectivity and records the result
// in the component health registry.
func healthLoop(ctx context.Context, orchestrator *streaming.Orchestrator) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := orchestrator.HealthCheck(probeCtx); err != nil {
			log.Warningln("Remote store health check failed:", err)
			metrics.SetComponentHealthStatus(metrics.RemoteStoreComponent, metrics.StatusCritical, err.Error())
		} else {
			metrics.SetComponentHealthStatus(metrics.RemoteStoreComponent, metrics.StatusOK, "")
		}
	}

	metrics.SetComponentHealthStatus(metrics.WebComponent, metrics.StatusOK, "")
	metrics.SetComponentHealthStatus(metrics.ChunkCacheComponent, metrics.StatusOK, "")
	probe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			probe()
		}
	}
}
