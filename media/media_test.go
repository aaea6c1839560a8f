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
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samdjk118/CloudStream-Studio/mock"
	"github.com/samdjk118/CloudStream-Studio/remote"
)

type recordingInvalidator struct {
	changed []string
}

func (r *recordingInvalidator) OnObjectChanged(objectID string) {
	r.changed = append(r.changed, objectID)
}

func newTestService(store *mock.Store) (*Service, *recordingInvalidator) {
	manager := remote.NewManager(func() (remote.Store, error) { return store, nil })
	invalidator := &recordingInvalidator{}
	return NewService(manager, invalidator), invalidator
}

func TestUploadStoresAndInvalidates(t *testing.T) {
	store := mock.NewStore()
	service, invalidator := newTestService(store)

	objectID, err := service.Upload(context.Background(), "My Movie (2024).mp4", "video/mp4", bytes.NewReader([]byte("abcd")))
	require.NoError(t, err)
	assert.Equal(t, "My_Movie__2024_.mp4", objectID)
	assert.Equal(t, []string{objectID}, invalidator.changed)

	data, err := store.FetchFull(context.Background(), objectID)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), data)
}

func TestUploadGeneratesNameWhenMissing(t *testing.T) {
	store := mock.NewStore()
	service, _ := newTestService(store)

	objectID, err := service.Upload(context.Background(), "", "video/mp4", bytes.NewReader([]byte("abcd")))
	require.NoError(t, err)
	assert.NotEmpty(t, objectID)

	found, err := store.Exists(context.Background(), objectID)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDeleteInvalidatesCaches(t *testing.T) {
	store := mock.NewStore()
	store.Put("movie.mp4", []byte("abcd"), "video/mp4")
	service, invalidator := newTestService(store)

	require.NoError(t, service.Delete(context.Background(), "movie.mp4"))
	assert.Equal(t, []string{"movie.mp4"}, invalidator.changed)

	err := service.Delete(context.Background(), "movie.mp4")
	require.Error(t, err)
	assert.True(t, remote.IsNotFound(err))
	// The failed delete must not trigger another invalidation.
	assert.Len(t, invalidator.changed, 1)
}

func TestListFiltersByPrefix(t *testing.T) {
	store := mock.NewStore()
	store.Put("movies/a.mp4", []byte("aaaa"), "video/mp4")
	store.Put("movies/b.mp4", []byte("bbbb"), "video/mp4")
	store.Put("shows/c.mp4", []byte("cccc"), "video/mp4")
	service, _ := newTestService(store)

	items, err := service.List(context.Background(), "movies/")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "movies/a.mp4", items[0].Name)
	assert.Equal(t, "movies/b.mp4", items[1].Name)
}

func TestThumbnailPassthrough(t *testing.T) {
	store := mock.NewStore()
	store.Put("thumbnails/movie.jpg", []byte("jpegdata"), "image/jpeg")
	service, _ := newTestService(store)

	data, err := service.Thumbnail(context.Background(), "movie.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegdata"), data)

	_, err = service.Thumbnail(context.Background(), "other.mp4")
	require.Error(t, err)
	assert.True(t, remote.IsNotFound(err))
}

func newMediaRouter(service *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	service.Register(engine.Group("/"))
	return engine
}

func TestUploadEndpoint(t *testing.T) {
	store := mock.NewStore()
	service, _ := newTestService(store)
	router := newMediaRouter(service)

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("abcd"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1.0/media", &form)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "clip.mp4")

	found, err := store.Exists(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDeleteEndpoint(t *testing.T) {
	store := mock.NewStore()
	store.Put("movie.mp4", []byte("abcd"), "video/mp4")
	service, _ := newTestService(store)
	router := newMediaRouter(service)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1.0/media/movie.mp4", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1.0/media/movie.mp4", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestListEndpoint(t *testing.T) {
	store := mock.NewStore()
	store.Put("a.mp4", []byte("aaaa"), "video/mp4")
	service, _ := newTestService(store)
	router := newMediaRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/media", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"count":1`)
	assert.Contains(t, recorder.Body.String(), "a.mp4")
}
