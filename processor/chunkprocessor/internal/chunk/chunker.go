// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package chunk implements the splitting protocol for oversized telemetry
// fields: bounded pieces plus metadata that lets a consumer reassemble the
// original value, even when chunks arrive out of order.
package chunk // import "github.com/observek/opentelemetry-collector-components/processor/chunkprocessor/internal/chunk"

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/collector/pdata/pcommon"
)

// Metadata key suffixes written next to a chunked field. Keys carrying these
// suffixes are never chunked again, so chunking one field cannot recursively
// chunk its own metadata.
const (
	SuffixChunked     = "_chunked"
	SuffixTotalChunks = "_totalChunks"
	SuffixContextID   = "_chunkContextId"
)

var chunkIndexSuffix = regexp.MustCompile(`_chunk_\d+$`)

// Split cuts s into pieces of at most size bytes. Concatenating the pieces in
// order reproduces s exactly.
func Split(s string, size int) []string {
	n := TotalChunks(len(s), size)
	pieces := make([]string, 0, n)
	for start := 0; start < len(s); start += size {
		end := start + size
		if end > len(s) {
			end = len(s)
		}
		pieces = append(pieces, s[start:end])
	}
	return pieces
}

// TotalChunks returns ceil(length/size).
func TotalChunks(length, size int) int {
	return (length + size - 1) / size
}

// ContextID derives the deterministic, non-cryptographic identifier shared by
// all chunks of one field. Equal inputs always yield the same id, across
// processes and restarts, which is what makes out-of-order reassembly at the
// consumer possible.
func ContextID(traceID pcommon.TraceID, spanID pcommon.SpanID, source, key string) string {
	h := xxhash.New()
	_, _ = h.Write(traceID[:])
	_, _ = h.Write(spanID[:])
	_, _ = h.WriteString(source)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(key)
	return strconv.FormatUint(h.Sum64(), 16)
}

// ChunkKey returns the attribute key for the i-th (1-based) chunk of key.
func ChunkKey(key string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", key, i)
}

// IsMetadataKey reports whether key names chunk metadata rather than payload.
func IsMetadataKey(key string) bool {
	return strings.HasSuffix(key, SuffixChunked) ||
		strings.HasSuffix(key, SuffixTotalChunks) ||
		strings.HasSuffix(key, SuffixContextID) ||
		chunkIndexSuffix.MatchString(key)
}

// Stringify renders a pdata value for chunking: strings pass through,
// composite values serialize to their JSON form, everything else falls back
// to its plain string conversion.
func Stringify(v pcommon.Value) string {
	if v.Type() == pcommon.ValueTypeStr {
		return v.Str()
	}
	return v.AsString()
}
