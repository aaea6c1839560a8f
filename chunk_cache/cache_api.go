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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/samdjk118/CloudStream-Studio/server_structs"
)

// Register mounts the cache observability endpoints on the router.
func (cc *Cache) Register(router *gin.RouterGroup) {
	router.GET("/api/v1.0/cache/stats", func(ginCtx *gin.Context) { cc.statsCmd(ginCtx) })
	router.GET("/api/v1.0/cache/detailed", func(ginCtx *gin.Context) { cc.detailedCmd(ginCtx) })
	router.POST("/api/v1.0/cache/clear", func(ginCtx *gin.Context) { cc.clearCmd(ginCtx) })
}

func (cc *Cache) statsCmd(ginCtx *gin.Context) {
	ginCtx.JSON(http.StatusOK, cc.Stats())
}

func (cc *Cache) detailedCmd(ginCtx *gin.Context) {
	topN := 0
	if raw := ginCtx.Query("top"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			ginCtx.AbortWithStatusJSON(http.StatusBadRequest,
				server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Invalid top parameter"})
			return
		}
		topN = parsed
	}
	ginCtx.JSON(http.StatusOK, cc.DetailedStats(topN))
}

func (cc *Cache) clearCmd(ginCtx *gin.Context) {
	log.Infoln("Received request to clear the chunk cache")
	cc.Clear()
	ginCtx.JSON(http.StatusOK,
		server_structs.SimpleApiResp{Status: server_structs.RespOK, Msg: "Chunk cache cleared"})
}
