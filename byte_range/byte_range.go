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

// Package byte_range resolves HTTP-style Range headers against a known
// object size, producing a validated inclusive byte window.
package byte_range

import (
	"fmt"
	"regexp"
	"strconv"
)

// Window is an inclusive byte range within a single object.
// Invariant once resolved: 0 <= Start <= End < objectSize.
type Window struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the window covers.  This value is the
// contract for all downstream size bookkeeping; a remote response whose
// length disagrees with it (beyond the tolerated one byte) is an error.
func (w Window) Length() int64 {
	return w.End - w.Start + 1
}

// ContentRange renders the window as a Content-Range header value.
func (w Window) ContentRange(objectSize int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", w.Start, w.End, objectSize)
}

// MalformedRangeError indicates the Range header did not match the
// expected bytes=<start>-<end?> grammar.  Callers are expected to fall
// back to serving the whole object.
type MalformedRangeError struct {
	Header string
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed range header %q", e.Header)
}

// Resolver turns raw Range headers into clamped windows.
type Resolver struct {
	// MaxUnboundedSize caps the window length when the client omits the
	// range end (bounds memory use for greedy range-less requests).
	MaxUnboundedSize int64

	// MaxChunkSize truncates any resolved window at the tail; the client
	// must re-request subsequent bytes.  Keeps single fetches, and thus
	// eviction pressure and latency, bounded.
	MaxChunkSize int64
}

var rangeRegex = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// WholeObject returns the window covering the entire object.  It is not
// subject to MaxChunkSize truncation; the orchestrator handles whole-object
// requests through a separate path.
func WholeObject(objectSize int64) Window {
	return Window{Start: 0, End: objectSize - 1}
}

// Resolve parses rawHeader ("bytes=<start>-<end?>") against objectSize.
//
// An omitted end defaults to min(start+MaxUnboundedSize-1, objectSize-1).
// Start and end are clamped into [0, objectSize-1] with start <= end, then
// the window is truncated at the tail if longer than MaxChunkSize.
func (r Resolver) Resolve(rawHeader string, objectSize int64) (Window, error) {
	if rawHeader == "" {
		return WholeObject(objectSize), nil
	}

	matches := rangeRegex.FindStringSubmatch(rawHeader)
	if matches == nil {
		return Window{}, &MalformedRangeError{Header: rawHeader}
	}

	start, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return Window{}, &MalformedRangeError{Header: rawHeader}
	}

	var end int64
	if matches[2] != "" {
		if end, err = strconv.ParseInt(matches[2], 10, 64); err != nil {
			return Window{}, &MalformedRangeError{Header: rawHeader}
		}
	} else {
		end = start + r.MaxUnboundedSize - 1
		if end > objectSize-1 {
			end = objectSize - 1
		}
	}

	if start > objectSize-1 {
		start = objectSize - 1
	}
	if start < 0 {
		start = 0
	}
	if end > objectSize-1 {
		end = objectSize - 1
	}
	if end < start {
		end = start
	}

	if r.MaxChunkSize > 0 && end-start+1 > r.MaxChunkSize {
		end = start + r.MaxChunkSize - 1
	}

	return Window{Start: start, End: end}, nil
}
