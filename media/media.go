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

// Package media implements the management surface for stored objects:
// upload, delete, listing, and thumbnail passthrough.
package media

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/samdjk118/CloudStream-Studio/remote"
)

// Invalidator receives a notification after an object is mutated so any
// cached state for it can be dropped.  The streaming orchestrator
// satisfies this.
type Invalidator interface {
	OnObjectChanged(objectID string)
}

// Service mediates object mutations through the connection manager and
// keeps the caches coherent via the invalidator.
type Service struct {
	manager     *remote.Manager
	invalidator Invalidator
}

func NewService(manager *remote.Manager, invalidator Invalidator) *Service {
	return &Service{manager: manager, invalidator: invalidator}
}

// Upload stores body under a name derived from filename.  When filename is
// empty a random name is generated.  The stored object ID is returned.
func (s *Service) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	objectID := sanitizeName(filename)
	if objectID == "" {
		objectID = uuid.NewString()
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(objectID))
	}

	err := s.manager.WithConnection(ctx, nil, func(store remote.Store) error {
		return store.Upload(ctx, objectID, body, contentType)
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload %s", objectID)
	}

	log.Infof("Uploaded object %s (content type %s)", objectID, contentType)
	s.invalidator.OnObjectChanged(objectID)
	return objectID, nil
}

// Delete removes the object and drops any cached state for it.
func (s *Service) Delete(ctx context.Context, objectID string) error {
	err := s.manager.WithConnection(ctx, nil, func(store remote.Store) error {
		return store.Delete(ctx, objectID)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s", objectID)
	}

	log.Infof("Deleted object %s", objectID)
	s.invalidator.OnObjectChanged(objectID)
	return nil
}

// List enumerates stored objects, optionally restricted to a name prefix.
func (s *Service) List(ctx context.Context, prefix string) ([]remote.Metadata, error) {
	var items []remote.Metadata
	err := s.manager.WithConnection(ctx, nil, func(store remote.Store) error {
		fetched, err := store.List(ctx, prefix)
		if err != nil {
			return err
		}
		items = fetched
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list objects")
	}
	return items, nil
}

// Thumbnail fetches the pre-rendered thumbnail stored alongside the
// object, under thumbnails/<base name>.jpg.
func (s *Service) Thumbnail(ctx context.Context, objectID string) ([]byte, error) {
	base := strings.TrimSuffix(path.Base(objectID), path.Ext(objectID))
	thumbID := "thumbnails/" + base + ".jpg"

	var data []byte
	err := s.manager.WithConnection(ctx, nil, func(store remote.Store) error {
		fetched, err := store.FetchFull(ctx, thumbID)
		if err != nil {
			return err
		}
		data = fetched
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch thumbnail for %s", objectID)
	}
	return data, nil
}

// sanitizeName flattens an upload filename into a safe object name.
func sanitizeName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
