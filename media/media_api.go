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

package media

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/samdjk118/CloudStream-Studio/remote"
	"github.com/samdjk118/CloudStream-Studio/server_structs"
)

// Register mounts the media management endpoints on the router.
func (s *Service) Register(router *gin.RouterGroup) {
	router.POST("/api/v1.0/media", func(ginCtx *gin.Context) { s.uploadCmd(ginCtx) })
	router.DELETE("/api/v1.0/media/*object", func(ginCtx *gin.Context) { s.deleteCmd(ginCtx) })
	router.GET("/api/v1.0/media", func(ginCtx *gin.Context) { s.listCmd(ginCtx) })
	router.GET("/api/v1.0/media/thumbnail/*object", func(ginCtx *gin.Context) { s.thumbnailCmd(ginCtx) })
}

func (s *Service) uploadCmd(ginCtx *gin.Context) {
	fileHeader, err := ginCtx.FormFile("file")
	if err != nil {
		ginCtx.AbortWithStatusJSON(http.StatusBadRequest,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Missing file in upload form"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("Failed to open uploaded file %s: %v", fileHeader.Filename, err)
		ginCtx.AbortWithStatusJSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	objectID, err := s.Upload(ginCtx.Request.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		log.Errorf("Upload of %s failed: %v", fileHeader.Filename, err)
		ginCtx.AbortWithStatusJSON(uploadStatus(err),
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Upload failed"})
		return
	}

	ginCtx.JSON(http.StatusCreated, gin.H{
		"status":   server_structs.RespOK,
		"objectId": objectID,
	})
}

func (s *Service) deleteCmd(ginCtx *gin.Context) {
	objectID := strings.TrimPrefix(ginCtx.Param("object"), "/")
	if objectID == "" {
		ginCtx.AbortWithStatusJSON(http.StatusBadRequest,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "No object specified"})
		return
	}

	if err := s.Delete(ginCtx.Request.Context(), objectID); err != nil {
		if remote.IsNotFound(err) {
			ginCtx.AbortWithStatusJSON(http.StatusNotFound,
				server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Object not found: " + objectID})
			return
		}
		log.Errorf("Delete of %s failed: %v", objectID, err)
		ginCtx.AbortWithStatusJSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Delete failed"})
		return
	}

	ginCtx.JSON(http.StatusOK, server_structs.SimpleApiResp{Status: server_structs.RespOK})
}

func (s *Service) listCmd(ginCtx *gin.Context) {
	items, err := s.List(ginCtx.Request.Context(), ginCtx.Query("prefix"))
	if err != nil {
		log.Errorf("Listing objects failed: %v", err)
		ginCtx.AbortWithStatusJSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to list objects"})
		return
	}
	if items == nil {
		items = []remote.Metadata{}
	}
	ginCtx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Service) thumbnailCmd(ginCtx *gin.Context) {
	objectID := strings.TrimPrefix(ginCtx.Param("object"), "/")
	if objectID == "" {
		ginCtx.AbortWithStatusJSON(http.StatusBadRequest,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "No object specified"})
		return
	}

	data, err := s.Thumbnail(ginCtx.Request.Context(), objectID)
	if err != nil {
		if remote.IsNotFound(err) {
			ginCtx.AbortWithStatusJSON(http.StatusNotFound,
				server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "No thumbnail for " + objectID})
			return
		}
		log.Errorf("Thumbnail fetch for %s failed: %v", objectID, err)
		ginCtx.AbortWithStatusJSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to fetch thumbnail"})
		return
	}

	ginCtx.Header("Cache-Control", "public, max-age=3600")
	ginCtx.Data(http.StatusOK, "image/jpeg", data)
}

func uploadStatus(err error) int {
	if remote.IsUnavailable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
