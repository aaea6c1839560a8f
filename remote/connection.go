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

package remote

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Factory constructs a fresh Store handle with freshly loaded credentials.
type Factory func() (Store, error)

// handleBox wraps the Store interface so the live handle can sit behind an
// atomic pointer.  The handle is swapped, never mutated in place, so readers
// always observe either the old or the new handle consistently.
type handleBox struct {
	store Store
}

// Manager owns the single live connection to the backing store.  The handle
// is created lazily on first use; when an operation fails with an
// auth-expired error the handle is discarded in full, a replacement is
// built, and the operation is retried exactly once.  A second consecutive
// auth failure surfaces to the caller as an UnavailableError.
type Manager struct {
	factory Factory

	handle   atomic.Pointer[handleBox]
	buildMu  sync.Mutex
	creates  atomic.Int64
	lastErr  atomic.Pointer[error]
	healthOK atomic.Bool
}

// NewManager returns a Manager that builds handles with factory.  No
// connection is made until the first operation runs.
func NewManager(factory Factory) *Manager {
	return &Manager{factory: factory}
}

// connect returns the current handle, constructing one if none is live.
func (m *Manager) connect() (Store, error) {
	if box := m.handle.Load(); box != nil {
		return box.store, nil
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	if box := m.handle.Load(); box != nil {
		return box.store, nil
	}

	log.Debugln("Initializing remote store connection")
	store, err := m.factory()
	if err != nil {
		m.lastErr.Store(&err)
		return nil, &UnavailableError{Op: "connect", Err: err}
	}
	m.creates.Add(1)
	m.handle.Store(&handleBox{store: store})
	return store, nil
}

// discard drops the given handle if it is still the live one.  Concurrent
// callers that raced on the same stale handle collapse into a single reset.
func (m *Manager) discard(stale Store) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	if box := m.handle.Load(); box != nil && box.store == stale {
		log.Warningln("Discarding remote store connection after credential expiry")
		m.handle.Store(nil)
	}
}

// ForceReset discards the live handle unconditionally.  Exposed for
// operational recovery (e.g. after a failed health check) and for tests.
func (m *Manager) ForceReset() {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	log.Infoln("Remote store connection force-reset requested")
	m.handle.Store(nil)
}

// CreationCount returns how many handles have been constructed over the
// manager's lifetime.
func (m *Manager) CreationCount() int64 {
	return m.creates.Load()
}

// WithConnection runs fn against the live store handle.  If fn fails with
// an auth-expired error the handle is rebuilt and fn retried once; the
// retry's auth failure is converted to an UnavailableError rather than
// looping.  onReset, if non-nil, is invoked between the reset and the
// retry (the metadata cache uses it to clear entries fetched under the
// soon-to-be-invalid credentials).
func (m *Manager) WithConnection(ctx context.Context, onReset func(), fn func(Store) error) error {
	store, err := m.connect()
	if err != nil {
		return err
	}

	err = fn(store)
	if err == nil || !IsAuthExpired(err) {
		return err
	}

	log.Warningf("Remote operation failed with expired credentials, reconnecting: %v", err)
	m.discard(store)
	if onReset != nil {
		onReset()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	store, connErr := m.connect()
	if connErr != nil {
		return connErr
	}

	if err = fn(store); err != nil {
		if IsAuthExpired(err) {
			return &UnavailableError{Op: "retry after credential refresh", Err: err}
		}
		return err
	}
	log.Infoln("Remote operation succeeded after reconnect")
	return nil
}

// HealthCheck probes connectivity by statting a sentinel object.  The
// object's existence is irrelevant; only transport or credential failures
// count against health.
func (m *Manager) HealthCheck(ctx context.Context) error {
	err := m.WithConnection(ctx, nil, func(s Store) error {
		_, err := s.Exists(ctx, ".cloudstream-healthcheck")
		return err
	})
	m.healthOK.Store(err == nil)
	return err
}

// Healthy reports the outcome of the most recent health check.
func (m *Manager) Healthy() bool {
	return m.healthOK.Load()
}
