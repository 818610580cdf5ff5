// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/collector/pdata/pcommon"
)

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"abcdefghij", "klmno"}, Split("abcdefghijklmno", 10))
	assert.Equal(t, []string{"abc"}, Split("abc", 10))
	assert.Empty(t, Split("", 10))
}

func TestSplitReassembles(t *testing.T) {
	inputs := []string{
		"abcdefghijklmno",
		strings.Repeat("x", 99),
		strings.Repeat("payload ", 1000),
	}
	for _, in := range inputs {
		for _, size := range []int{1, 7, 10, len(in), len(in) + 1} {
			pieces := Split(in, size)
			assert.Equal(t, in, strings.Join(pieces, ""))
			assert.Len(t, pieces, TotalChunks(len(in), size))
			for _, p := range pieces {
				assert.LessOrEqual(t, len(p), size)
			}
		}
	}
}

func TestTotalChunks(t *testing.T) {
	assert.Equal(t, 0, TotalChunks(0, 10))
	assert.Equal(t, 1, TotalChunks(10, 10))
	assert.Equal(t, 2, TotalChunks(11, 10))
	assert.Equal(t, 2, TotalChunks(15, 10))
}

func TestContextIDDeterministic(t *testing.T) {
	traceID := pcommon.TraceID([16]byte{1, 2, 3})
	spanID := pcommon.SpanID([8]byte{4, 5, 6})

	first := ContextID(traceID, spanID, "scope", "body")
	second := ContextID(traceID, spanID, "scope", "body")
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)

	assert.NotEqual(t, first, ContextID(traceID, spanID, "scope", "other"))
	assert.NotEqual(t, first, ContextID(traceID, spanID, "other", "body"))
	assert.NotEqual(t, first, ContextID(traceID, pcommon.SpanID([8]byte{9}), "scope", "body"))
}

func TestChunkKey(t *testing.T) {
	assert.Equal(t, "body_chunk_1", ChunkKey("body", 1))
	assert.Equal(t, "payload_chunk_12", ChunkKey("payload", 12))
}

func TestIsMetadataKey(t *testing.T) {
	tests := []struct {
		key      string
		metadata bool
	}{
		{"body_chunked", true},
		{"body_totalChunks", true},
		{"body_chunkContextId", true},
		{"body_chunk_1", true},
		{"payload_chunk_42", true},
		{"body", false},
		{"payload", false},
		{"chunk", false},
		{"body_chunk_x", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.metadata, IsMetadataKey(tt.key))
		})
	}
}

func TestStringify(t *testing.T) {
	v := pcommon.NewValueStr("plain")
	assert.Equal(t, "plain", Stringify(v))

	m := pcommon.NewValueMap()
	m.Map().PutStr("k", "v")
	assert.Equal(t, `{"k":"v"}`, Stringify(m))

	assert.Equal(t, "42", Stringify(pcommon.NewValueInt(42)))
}
