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

package streaming_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, rig *testRig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	rig.orchestrator.Register(engine.Group("/"))
	return engine
}

func TestStreamEndpointRangeRequest(t *testing.T) {
	rig := newTestRig(t, defaultConfig())
	rig.store.Put("movie.mp4", []byte("0123456789"), "video/mp4")
	router := newTestRouter(t, rig)

	req := httptest.NewRequest(http.MethodGet, "/stream/movie.mp4", nil)
	req.Header.Set("Range", "bytes=2-5")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusPartialContent, recorder.Code)
	assert.Equal(t, "bytes 2-5/10", recorder.Header().Get("Content-Range"))
	assert.Equal(t, "MISS", recorder.Header().Get("X-Cache"))
	assert.Equal(t, "video/mp4", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "2345", recorder.Body.String())
}

func TestStreamEndpointNestedObjectPath(t *testing.T) {
	rig := newTestRig(t, defaultConfig())
	rig.store.Put("shows/s01/e01.mp4", []byte("0123456789"), "video/mp4")
	router := newTestRouter(t, rig)

	req := httptest.NewRequest(http.MethodGet, "/stream/shows/s01/e01.mp4", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "0123456789", recorder.Body.String())
}

func TestStreamEndpointNotFound(t *testing.T) {
	rig := newTestRig(t, defaultConfig())
	router := newTestRouter(t, rig)

	req := httptest.NewRequest(http.MethodGet, "/stream/missing.mp4", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["msg"], "missing.mp4")
}

func TestStreamEndpointHead(t *testing.T) {
	rig := newTestRig(t, defaultConfig())
	rig.store.Put("movie.mp4", []byte("0123456789"), "video/mp4")
	router := newTestRouter(t, rig)

	req := httptest.NewRequest(http.MethodHead, "/stream/movie.mp4", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "10", recorder.Header().Get("Content-Length"))
	assert.Equal(t, "video/mp4", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", recorder.Header().Get("Accept-Ranges"))
	assert.Empty(t, recorder.Body.String())
}

func TestFullHealthEndpoint(t *testing.T) {
	rig := newTestRig(t, defaultConfig())
	router := newTestRouter(t, rig)

	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/health/full", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Contains(t, body, "status")
	assert.Contains(t, body, "chunk_cache")
	assert.Contains(t, body, "metadata_cache")
}
