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

package byte_range

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBoundedRange(t *testing.T) {
	resolver := Resolver{MaxUnboundedSize: 20 << 20, MaxChunkSize: 10 << 20}

	window, err := resolver.Resolve("bytes=0-1023", 1000)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 0, End: 999}, window)

	window, err = resolver.Resolve("bytes=100-199", 1000)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 100, End: 199}, window)
	assert.Equal(t, int64(100), window.Length())
}

func TestResolveUnboundedRange(t *testing.T) {
	resolver := Resolver{MaxUnboundedSize: 1000, MaxChunkSize: 10 << 20}

	// End defaults to start + MaxUnboundedSize - 1, capped at the object tail.
	window, err := resolver.Resolve("bytes=500-", 2000)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 500, End: 1499}, window)

	window, err = resolver.Resolve("bytes=1800-", 2000)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 1800, End: 1999}, window)
}

func TestResolveClampsToObject(t *testing.T) {
	resolver := Resolver{MaxUnboundedSize: 1000, MaxChunkSize: 10 << 20}

	// Start past the end of the object collapses to the final byte.
	window, err := resolver.Resolve("bytes=5000-6000", 1000)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 999, End: 999}, window)
	assert.Equal(t, int64(1), window.Length())

	// End before start collapses to a single byte at start.
	window, err = resolver.Resolve("bytes=500-100", 1000)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 500, End: 500}, window)
}

func TestResolveTruncatesAtMaxChunkSize(t *testing.T) {
	resolver := Resolver{MaxUnboundedSize: 1 << 30, MaxChunkSize: 1024}

	window, err := resolver.Resolve("bytes=0-999999", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 0, End: 1023}, window)

	// Exactly at the cap is left alone.
	window, err = resolver.Resolve("bytes=100-1123", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 100, End: 1123}, window)
}

func TestResolveMalformedHeaders(t *testing.T) {
	resolver := Resolver{MaxUnboundedSize: 1000, MaxChunkSize: 1000}

	for _, header := range []string{
		"bytes=-500",
		"bytes=abc-def",
		"bytes=10-20,30-40",
		"octets=0-100",
		"bytes=",
	} {
		_, err := resolver.Resolve(header, 1000)
		var malformed *MalformedRangeError
		require.True(t, errors.As(err, &malformed), "header %q should be malformed", header)
		assert.Contains(t, malformed.Error(), header)
	}
}

func TestResolveEmptyHeaderIsWholeObject(t *testing.T) {
	resolver := Resolver{MaxUnboundedSize: 10, MaxChunkSize: 10}

	// The whole-object window ignores MaxChunkSize.
	window, err := resolver.Resolve("", 100000)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 0, End: 99999}, window)
	assert.Equal(t, WholeObject(100000), window)
}

func TestContentRange(t *testing.T) {
	window := Window{Start: 0, End: 999}
	assert.Equal(t, "bytes 0-999/1000", window.ContentRange(1000))
}
