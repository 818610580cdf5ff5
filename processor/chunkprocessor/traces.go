// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package chunkprocessor // import "github.com/observek/opentelemetry-collector-components/processor/chunkprocessor"

import (
	"context"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap"

	"github.com/observek/opentelemetry-collector-components/processor/chunkprocessor/internal/chunk"
)

// chunkTracesProcessor splits oversized span and event attributes into
// synthetic chunk events so that no single field exceeds the configured size.
type chunkTracesProcessor struct {
	maxChunkChars   int
	keepOriginalKey bool
	eventName       string
	next            consumer.Traces
	logger          *zap.Logger
}

func newChunkTracesProcessor(cfg *Config, logger *zap.Logger, next consumer.Traces) *chunkTracesProcessor {
	return &chunkTracesProcessor{
		maxChunkChars:   cfg.MaxChunkChars,
		keepOriginalKey: cfg.KeepOriginalKey,
		eventName:       cfg.EventName,
		next:            next,
		logger:          logger,
	}
}

// Start is invoked during service startup.
func (p *chunkTracesProcessor) Start(context.Context, component.Host) error {
	return nil
}

// Shutdown is invoked during service shutdown.
func (p *chunkTracesProcessor) Shutdown(context.Context) error {
	return nil
}

// Capabilities returns the consumer's capabilities.
func (p *chunkTracesProcessor) Capabilities() consumer.Capabilities {
	return consumer.Capabilities{MutatesData: true}
}

// ConsumeTraces chunks oversized fields in place and forwards the batch.
// Chunking never drops telemetry: a span that fails to chunk is forwarded
// as-is.
func (p *chunkTracesProcessor) ConsumeTraces(ctx context.Context, td ptrace.Traces) error {
	rss := td.ResourceSpans()
	for i := 0; i < rss.Len(); i++ {
		scopes := rss.At(i).ScopeSpans()
		for j := 0; j < scopes.Len(); j++ {
			ss := scopes.At(j)
			source := ss.Scope().Name()
			spans := ss.Spans()
			for k := 0; k < spans.Len(); k++ {
				p.chunkSpan(spans.At(k), source)
			}
		}
	}
	return p.next.ConsumeTraces(ctx, td)
}

func (p *chunkTracesProcessor) chunkSpan(span ptrace.Span, source string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("span chunking failed, forwarding span unchunked",
				zap.String("span", span.Name()), zap.Any("error", r))
		}
	}()

	// Only the events present before chunking; synthetic chunk events are
	// bounded by construction.
	eventCount := span.Events().Len()
	p.chunkMap(span.Attributes(), span, source)
	for i := 0; i < eventCount; i++ {
		p.chunkMap(span.Events().At(i).Attributes(), span, source)
	}
}

// chunkMap replaces every oversized value in m with chunk metadata and emits
// one synthetic event per chunk on the owning span.
func (p *chunkTracesProcessor) chunkMap(m pcommon.Map, span ptrace.Span, source string) {
	type oversized struct {
		key  string
		text string
	}
	var fields []oversized
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
		contextID := chunk.ContextID(span.TraceID(), span.SpanID(), source, f.key)

		m.PutBool(f.key+chunk.SuffixChunked, true)
		m.PutInt(f.key+chunk.SuffixTotalChunks, int64(len(pieces)))
		if p.keepOriginalKey {
			m.PutStr(f.key, f.text[:p.maxChunkChars])
		} else {
			m.Remove(f.key)
		}

		for i, piece := range pieces {
			event := span.Events().AppendEmpty()
			event.SetName(source + "/" + p.eventName)
			attrs := event.Attributes()
			attrs.PutStr("chunkContextId", contextID)
			attrs.PutStr("chunkKey", f.key)
			attrs.PutInt("chunkIndex", int64(i+1))
			attrs.PutInt("totalChunks", int64(len(pieces)))
			attrs.PutStr("chunk", piece)
		}
	}
}
