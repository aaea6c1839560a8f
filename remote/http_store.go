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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/samdjk118/CloudStream-Studio/param"
)

// metaHeaderPrefix carries custom object attributes on HEAD/GET responses.
const metaHeaderPrefix = "X-Object-Meta-"

// HTTPStore talks to an HTTP object-store gateway.  Objects live under
// {baseURL}/{bucket}/{objectID}; the store authenticates with a bearer
// token loaded from disk when the handle is constructed, so rebuilding the
// handle picks up refreshed credentials.
type HTTPStore struct {
	baseURL *url.URL
	bucket  string
	token   string
	client  *http.Client
}

// NewHTTPStoreFromConfig builds an HTTPStore from the Remote.* parameters.
// It is the Factory the serve command hands to the connection manager.
func NewHTTPStoreFromConfig() (Store, error) {
	baseStr := param.Remote_Url.GetString()
	if baseStr == "" {
		return nil, errors.New("Remote.Url is not set; cannot connect to the object store")
	}
	bucket := param.Remote_Bucket.GetString()
	if bucket == "" {
		return nil, errors.New("Remote.Bucket is not set; cannot connect to the object store")
	}

	token := ""
	if tokenLocation := param.Remote_TokenLocation.GetString(); tokenLocation != "" {
		contents, err := os.ReadFile(tokenLocation)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read credential at %s", tokenLocation)
		}
		token = strings.TrimSpace(string(contents))
		log.Debugf("Loaded remote store credential from %s", tokenLocation)
	}

	return NewHTTPStore(baseStr, bucket, token, param.Remote_Timeout.GetDuration())
}

// NewHTTPStore constructs a store handle against baseURL/bucket using the
// given bearer token.  Every remote call is bounded by timeout.
func NewHTTPStore(baseURL, bucket, token string, timeout time.Duration) (*HTTPStore, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid remote store URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPStore{
		baseURL: parsed,
		bucket:  bucket,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPStore) objectURL(objectID string) string {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + s.bucket + "/" + strings.TrimLeft(objectID, "/")
	return u.String()
}

func (s *HTTPStore) do(req *http.Request) (*http.Response, error) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", req.URL)
	}
	return resp, nil
}

// classify maps an error-bearing response status to the typed taxonomy.
// The body is consumed for the error message and the response closed.
func classify(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s (status 404)", op)
	case http.StatusUnauthorized:
		return &AuthExpiredError{Op: op, Err: errors.Errorf("status 401: %s", strings.TrimSpace(string(body)))}
	case http.StatusForbidden:
		// Permission denied is permanent for this credential; a reconnect
		// cannot fix it, so it is not classified as auth-expired.
		return errors.Errorf("permission denied during %s: %s", op, strings.TrimSpace(string(body)))
	default:
		return errors.Errorf("%s replied with status code %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func (s *HTTPStore) Exists(ctx context.Context, objectID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.objectURL(objectID), nil)
	if err != nil {
		return false, err
	}
	resp, err := s.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, classify(fmt.Sprintf("exists %s", objectID), resp)
	}
}

func (s *HTTPStore) FetchMetadata(ctx context.Context, objectID string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.objectURL(objectID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, classify(fmt.Sprintf("stat %s", objectID), resp)
	}

	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s returned unparsable Content-Length", objectID)
	}
	attributes := make(map[string]string)
	for name, vals := range resp.Header {
		if strings.HasPrefix(name, metaHeaderPrefix) && len(vals) > 0 {
			attributes[strings.TrimPrefix(name, metaHeaderPrefix)] = vals[0]
		}
	}
	return &Metadata{
		Name:        objectID,
		Size:        size,
		ContentType: resp.Header.Get("Content-Type"),
		Etag:        strings.Trim(resp.Header.Get("Etag"), `"`),
		Attributes:  attributes,
		FetchedAt:   time.Now(),
	}, nil
}

func (s *HTTPStore) FetchRange(ctx context.Context, objectID string, start, end int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(objectID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, classify(fmt.Sprintf("read %s bytes %d-%d", objectID, start, end), resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading body of %s bytes %d-%d", objectID, start, end)
	}
	// Some gateways ignore Range and reply 200 with the whole object;
	// carve out the requested window so callers always see range semantics.
	if resp.StatusCode == http.StatusOK && int64(len(body)) > end-start+1 {
		if start >= int64(len(body)) {
			return []byte{}, nil
		}
		last := end + 1
		if last > int64(len(body)) {
			last = int64(len(body))
		}
		body = body[start:last]
	}
	return body, nil
}

func (s *HTTPStore) FetchFull(ctx context.Context, objectID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(objectID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, classify(fmt.Sprintf("read %s", objectID), resp)
	}
	return io.ReadAll(resp.Body)
}

func (s *HTTPStore) Upload(ctx context.Context, objectID string, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(objectID), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return classify(fmt.Sprintf("upload %s", objectID), resp)
	}
	return nil
}

func (s *HTTPStore) Delete(ctx context.Context, objectID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(objectID), nil)
	if err != nil {
		return err
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return classify(fmt.Sprintf("delete %s", objectID), resp)
	}
	return nil
}

func (s *HTTPStore) List(ctx context.Context, prefix string) ([]Metadata, error) {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + s.bucket
	q := u.Query()
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, classify("list objects", resp)
	}
	var listing []Metadata
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, errors.Wrap(err, "failed to decode object listing")
	}
	return listing, nil
}
