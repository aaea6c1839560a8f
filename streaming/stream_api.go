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

package streaming

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/samdjk118/CloudStream-Studio/metrics"
	"github.com/samdjk118/CloudStream-Studio/remote"
	"github.com/samdjk118/CloudStream-Studio/server_structs"
)

// Register mounts the streaming endpoints on the router.
func (o *Orchestrator) Register(router *gin.RouterGroup) {
	router.GET("/stream/*object", func(ginCtx *gin.Context) { o.streamGet(ginCtx) })
	router.HEAD("/stream/*object", func(ginCtx *gin.Context) { o.streamHead(ginCtx) })
	router.GET("/api/v1.0/health/full", func(ginCtx *gin.Context) { o.healthFull(ginCtx) })
}

func objectFromPath(ginCtx *gin.Context) string {
	// Wildcard params keep their leading slash.
	return strings.TrimPrefix(ginCtx.Param("object"), "/")
}

func (o *Orchestrator) streamGet(ginCtx *gin.Context) {
	objectID := objectFromPath(ginCtx)
	if objectID == "" {
		ginCtx.AbortWithStatusJSON(http.StatusBadRequest,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "No object specified"})
		return
	}

	resp, err := o.Serve(ginCtx.Request.Context(), objectID, ginCtx.GetHeader("Range"))
	if err != nil {
		abortWithStreamError(ginCtx, objectID, err)
		return
	}
	defer resp.Body.Close()

	for key, value := range resp.Headers {
		ginCtx.Header(key, value)
	}
	ginCtx.DataFromReader(resp.Status, resp.ContentLength, resp.ContentType, resp.Body, nil)
}

func (o *Orchestrator) streamHead(ginCtx *gin.Context) {
	objectID := objectFromPath(ginCtx)
	if objectID == "" {
		ginCtx.AbortWithStatus(http.StatusBadRequest)
		return
	}

	resp, err := o.Head(ginCtx.Request.Context(), objectID)
	if err != nil {
		abortWithStreamError(ginCtx, objectID, err)
		return
	}

	for key, value := range resp.Headers {
		ginCtx.Header(key, value)
	}
	ginCtx.Header("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	ginCtx.Header("Content-Type", resp.ContentType)
	ginCtx.Status(resp.Status)
}

// healthFull reports the component health registry plus cache occupancy.
func (o *Orchestrator) healthFull(ginCtx *gin.Context) {
	chunkStats := o.ChunkStats()
	metaStats := o.MetadataStats()
	health := metrics.GetHealthStatus()
	ginCtx.JSON(http.StatusOK, gin.H{
		"status":     health.OverallStatus,
		"components": health.Components,
		"remote": gin.H{
			"healthy": o.manager.Healthy(),
		},
		"chunk_cache": gin.H{
			"usage_bytes": chunkStats.UsageBytes,
			"budget":      chunkStats.BudgetBytes,
			"items":       chunkStats.Items,
			"hit_rate":    chunkStats.HitRate,
		},
		"metadata_cache": gin.H{
			"size":     metaStats.Size,
			"capacity": metaStats.Capacity,
			"hit_rate": metaStats.HitRate,
		},
	})
}

func abortWithStreamError(ginCtx *gin.Context, objectID string, err error) {
	switch {
	case remote.IsNotFound(err):
		ginCtx.AbortWithStatusJSON(http.StatusNotFound,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Object not found: " + objectID})
	case remote.IsUnavailable(err):
		log.Errorf("Remote store unavailable serving %s: %v", objectID, err)
		ginCtx.AbortWithStatusJSON(http.StatusServiceUnavailable,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Remote storage unavailable"})
	default:
		// Uncategorized errors are logged but not echoed back to the client.
		log.Errorf("Failed to serve %s: %v", objectID, err)
		ginCtx.AbortWithStatusJSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to serve object"})
	}
}
