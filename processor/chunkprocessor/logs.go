// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package chunkprocessor // import "github.com/observek/opentelemetry-collector-components/processor/chunkprocessor"

import (
	"context"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.uber.org/zap"

	"github.com/observek/opentelemetry-collector-components/processor/chunkprocessor/internal/chunk"
)

// bodyKey names the record body in chunk metadata, since the body is not an
// attribute and has no key of its own.
const bodyKey = "body"

// chunkedBodyPlaceholder replaces a chunked body when the original is not
// kept.
const chunkedBodyPlaceholder = "[chunked]"

// chunkLogsProcessor splits oversized log bodies and attributes into indexed
// chunk attributes on the same record. Logs have no child-event concept, so
// chunks ride along as additional attributes.
type chunkLogsProcessor struct {
	maxChunkChars   int
	keepOriginalKey bool
	next            consumer.Logs
	logger          *zap.Logger
}

func newChunkLogsProcessor(cfg *Config, logger *zap.Logger, next consumer.Logs) *chunkLogsProcessor {
	return &chunkLogsProcessor{
		maxChunkChars:   cfg.MaxChunkChars,
		keepOriginalKey: cfg.KeepOriginalKey,
		next:            next,
		logger:          logger,
	}
}

// Start is invoked during service startup.
func (p *chunkLogsProcessor) Start(context.Context, component.Host) error {
	return nil
}

// Shutdown is invoked during service shutdown.
func (p *chunkLogsProcessor) Shutdown(context.Context) error {
	return nil
}

// Capabilities returns the consumer's capabilities.
func (p *chunkLogsProcessor) Capabilities() consumer.Capabilities {
	return consumer.Capabilities{MutatesData: true}
}

// ConsumeLogs chunks oversized fields in place and forwards the batch. A
// record that fails to chunk is forwarded as-is.
func (p *chunkLogsProcessor) ConsumeLogs(ctx context.Context, ld plog.Logs) error {
	rls := ld.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		scopes := rls.At(i).ScopeLogs()
		for j := 0; j < scopes.Len(); j++ {
			sl := scopes.At(j)
			source := sl.Scope().Name()
			records := sl.LogRecords()
			for k := 0; k < records.Len(); k++ {
				p.chunkRecord(records.At(k), source)
			}
		}
	}
	return p.next.ConsumeLogs(ctx, ld)
}

func (p *chunkLogsProcessor) chunkRecord(lr plog.LogRecord, source string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("log record chunking failed, forwarding record unchunked",
				zap.Any("error", r))
		}
	}()

	p.chunkBody(lr, source)
	p.chunkAttributes(lr, source)
}

func (p *chunkLogsProcessor) chunkBody(lr plog.LogRecord, source string) {
	text := chunk.Stringify(lr.Body())
	if len(text) <= p.maxChunkChars {
		return
	}

	pieces := chunk.Split(text, p.maxChunkChars)
	contextID := chunk.ContextID(lr.TraceID(), lr.SpanID(), source, bodyKey)
	attrs := lr.Attributes()
	attrs.PutBool(bodyKey+chunk.SuffixChunked, true)
	attrs.PutInt(bodyKey+chunk.SuffixTotalChunks, int64(len(pieces)))
	attrs.PutStr(bodyKey+chunk.SuffixContextID, contextID)
	for i, piece := range pieces {
		attrs.PutStr(chunk.ChunkKey(bodyKey, i+1), piece)
	}

	if p.keepOriginalKey {
		lr.Body().SetStr(text[:p.maxChunkChars])
	} else {
		lr.Body().SetStr(chunkedBodyPlaceholder)
	}
}

func (p *chunkLogsProcessor) chunkAttributes(lr plog.LogRecord, source string) {
	type oversized struct {
		key  string
		text string
	}
	var fields []oversized
	m := lr.Attributes()
	m.Range(func(k string, v pcommon.Value) bool {
		if chunk.IsMetadataKey(k) {
			return true
		}
		if s := chunk.Stringify(v); len(s) > p.maxChunkChars {
			fields = append(fields, oversized{key: k, text: s})
		}
		return true
	})

	for _, f := range fields {
		pieces := chunk.Split(f.text, p.maxChunkChars)
		contextID := chunk.ContextID(lr.TraceID(), lr.SpanID(), source, f.key)

		m.PutBool(f.key+chunk.SuffixChunked, true)
		m.PutInt(f.key+chunk.SuffixTotalChunks, int64(len(pieces)))
		m.PutStr(f.key+chunk.SuffixContextID, contextID)
		if p.keepOriginalKey {
			m.PutStr(f.key, f.text[:p.maxChunkChars])
		} else {
			m.Remove(f.key)
		}
		for i, piece := range pieces {
			m.PutStr(chunk.ChunkKey(f.key, i+1), piece)
		}
	}
}
