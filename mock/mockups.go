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

//
// Create mockups of the remote object store
//
// Allows unit tests to run without connecting to a real backing store.
//

package mock

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/samdjk118/CloudStream-Studio/remote"
)

type object struct {
	data        []byte
	contentType string
	etag        string
	attributes  map[string]string
}

// Store is an in-memory remote.Store.  Failure injection: each call first
// consumes pending auth failures (NextAuthFailures), then a generic failure
// (NextErr), before executing normally.
type Store struct {
	mu      sync.Mutex
	objects map[string]object

	// NextAuthFailures makes the next N operations fail with an
	// auth-expired error.
	NextAuthFailures int

	// NextErr makes the next operation fail with this error.
	NextErr error

	// Call counters for assertions.
	MetadataCalls int
	RangeCalls    int
	FullCalls     int
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{objects: make(map[string]object)}
}

// Put seeds an object directly, bypassing failure injection.
func (s *Store) Put(objectID string, data []byte, contentType string) {
	sum := md5.Sum(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectID] = object{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		etag:        hex.EncodeToString(sum[:]),
		attributes:  make(map[string]string),
	}
}

func (s *Store) failure(op string) error {
	if s.NextAuthFailures > 0 {
		s.NextAuthFailures--
		return &remote.AuthExpiredError{Op: op, Err: errors.New("injected credential expiry")}
	}
	if s.NextErr != nil {
		err := s.NextErr
		s.NextErr = nil
		return err
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, objectID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("exists"); err != nil {
		return false, err
	}
	_, ok := s.objects[objectID]
	return ok, nil
}

func (s *Store) FetchMetadata(ctx context.Context, objectID string) (*remote.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MetadataCalls++
	if err := s.failure("stat"); err != nil {
		return nil, err
	}
	obj, ok := s.objects[objectID]
	if !ok {
		return nil, errors.Wrapf(remote.ErrNotFound, "stat %s", objectID)
	}
	return &remote.Metadata{
		Name:        objectID,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		Etag:        obj.etag,
		Attributes:  obj.attributes,
		FetchedAt:   time.Now(),
	}, nil
}

func (s *Store) FetchRange(ctx context.Context, objectID string, start, end int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RangeCalls++
	if err := s.failure("read range"); err != nil {
		return nil, err
	}
	obj, ok := s.objects[objectID]
	if !ok {
		return nil, errors.Wrapf(remote.ErrNotFound, "read %s", objectID)
	}
	size := int64(len(obj.data))
	if start >= size {
		return []byte{}, nil
	}
	last := end + 1
	if last > size {
		last = size
	}
	return append([]byte(nil), obj.data[start:last]...), nil
}

func (s *Store) FetchFull(ctx context.Context, objectID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FullCalls++
	if err := s.failure("read"); err != nil {
		return nil, err
	}
	obj, ok := s.objects[objectID]
	if !ok {
		return nil, errors.Wrapf(remote.ErrNotFound, "read %s", objectID)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *Store) Upload(ctx context.Context, objectID string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.failure("upload"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	s.Put(objectID, data, contentType)
	return nil
}

func (s *Store) Delete(ctx context.Context, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("delete"); err != nil {
		return err
	}
	if _, ok := s.objects[objectID]; !ok {
		return errors.Wrapf(remote.ErrNotFound, "delete %s", objectID)
	}
	delete(s.objects, objectID)
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]remote.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("list"); err != nil {
		return nil, err
	}
	listing := make([]remote.Metadata, 0, len(s.objects))
	for name, obj := range s.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		listing = append(listing, remote.Metadata{
			Name:        name,
			Size:        int64(len(obj.data)),
			ContentType: obj.contentType,
			Etag:        obj.etag,
		})
	}
	sort.Slice(listing, func(i, j int) bool { return listing[i].Name < listing[j].Name })
	return listing, nil
}
