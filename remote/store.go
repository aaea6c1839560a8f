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

// Package remote abstracts the backing object store and owns the single
// live connection to it, including credential-expiry detection and the
// reconnect-and-retry-once recovery policy.
package remote

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Metadata describes a remote object.  Records are immutable once created;
// the metadata cache replaces them wholesale on invalidation or re-fetch.
type Metadata struct {
	Name        string            `json:"name"`
	Size        int64             `json:"size"`
	ContentType string            `json:"contentType"`
	Etag        string            `json:"etag"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	FetchedAt   time.Time         `json:"fetchedAt"`
}

// Store is the capability surface of the backing object store.  All
// methods may fail with an auth-expired error (detected via IsAuthExpired),
// which is distinct from ErrNotFound and from generic transport errors.
type Store interface {
	// Exists reports whether the object is present.
	Exists(ctx context.Context, objectID string) (bool, error)

	// FetchMetadata returns the object's metadata, or ErrNotFound.
	FetchMetadata(ctx context.Context, objectID string) (*Metadata, error)

	// FetchRange returns the object bytes in [start, end]; end is inclusive.
	FetchRange(ctx context.Context, objectID string, start, end int64) ([]byte, error)

	// FetchFull returns the entire object.
	FetchFull(ctx context.Context, objectID string) ([]byte, error)

	// Upload stores the body under objectID, replacing any previous object.
	Upload(ctx context.Context, objectID string, body io.Reader, contentType string) error

	// Delete removes the object; returns ErrNotFound if it is absent.
	Delete(ctx context.Context, objectID string) error

	// List enumerates objects whose names begin with prefix.
	List(ctx context.Context, prefix string) ([]Metadata, error)
}

// ErrNotFound indicates the requested object does not exist in the store.
// Not-found is a legitimate outcome, never retried and never cached.
var ErrNotFound = errors.New("object not found")

// IsNotFound reports whether err (or anything it wraps) is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// AuthExpiredError signals the store rejected our credential because it has
// expired or could not be refreshed.  The connection manager responds by
// rebuilding the handle and retrying the operation exactly once.
type AuthExpiredError struct {
	Op  string
	Err error
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("credentials expired during %s: %v", e.Op, e.Err)
}

func (e *AuthExpiredError) Unwrap() error {
	return e.Err
}

// IsAuthExpired reports whether err is classified as a credential-expiry
// failure.  Permission-denied and not-found errors are deliberately NOT in
// this class; retrying them with a fresh handle cannot succeed.
func IsAuthExpired(err error) bool {
	var authErr *AuthExpiredError
	return errors.As(err, &authErr)
}

// UnavailableError is surfaced when the store could not be reached even
// after the single reconnect attempt, or when transport repeatedly failed.
// Callers should treat it as a 5xx-equivalent availability problem, not a
// client error.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remote store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	var unavailErr *UnavailableError
	return errors.As(err, &unavailErr)
}
