// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package urlfilterprocessor // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor"

import (
	"context"
	"fmt"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap"

	"github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/decisioncache"
	"github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/urlfilter"
)

// spanFilterProcessor drops spans whose name or attributes match a URL rule
// and cascades the drop decision to descendants, including descendants that
// arrive in later batches.
type spanFilterProcessor struct {
	engine *urlfilter.Engine
	cache  decisioncache.Cache
	next   consumer.Traces
	logger *zap.Logger
	bypass bool
}

func newSpanFilterProcessor(cfg *Config, logger *zap.Logger, cache decisioncache.Cache, next consumer.Traces) (*spanFilterProcessor, error) {
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &spanFilterProcessor{
		engine: engine,
		cache:  cache,
		next:   next,
		logger: logger,
		bypass: cfg.bypass(),
	}, nil
}

// Start is invoked during service startup.
func (p *spanFilterProcessor) Start(context.Context, component.Host) error {
	return nil
}

// Shutdown is invoked during service shutdown.
func (p *spanFilterProcessor) Shutdown(context.Context) error {
	return nil
}

// Capabilities returns the consumer's capabilities.
func (p *spanFilterProcessor) Capabilities() consumer.Capabilities {
	return consumer.Capabilities{MutatesData: true}
}

// ConsumeTraces filters the batch and forwards whatever remains. Filtering
// failures never lose telemetry: a failed batch is forwarded unfiltered.
func (p *spanFilterProcessor) ConsumeTraces(ctx context.Context, td ptrace.Traces) error {
	if p.bypass {
		return p.next.ConsumeTraces(ctx, td)
	}

	total := td.SpanCount()
	dropped := p.filterSpans(td)
	if dropped > 0 {
		p.logger.Debug("dropped spans matching url filter rules",
			zap.Int("dropped", dropped),
			zap.Int("remaining", total-dropped))
	}
	if td.ResourceSpans().Len() == 0 {
		return nil
	}
	return p.next.ConsumeTraces(ctx, td)
}

func (p *spanFilterProcessor) filterSpans(td ptrace.Traces) int {
	drop, err := p.decideBatch(td)
	if err != nil {
		p.logger.Error("span filtering failed, forwarding batch unfiltered",
			zap.Int("spans", td.SpanCount()), zap.Error(err))
		return 0
	}
	if len(drop) == 0 {
		return 0
	}

	dropped := 0
	rss := td.ResourceSpans()
	for i := 0; i < rss.Len(); i++ {
		scopes := rss.At(i).ScopeSpans()
		for j := 0; j < scopes.Len(); j++ {
			scopes.At(j).Spans().RemoveIf(func(s ptrace.Span) bool {
				if _, ok := drop[s.SpanID()]; ok {
					dropped++
					return true
				}
				return false
			})
		}
		scopes.RemoveIf(func(ss ptrace.ScopeSpans) bool {
			return ss.Spans().Len() == 0
		})
	}
	rss.RemoveIf(func(rs ptrace.ResourceSpans) bool {
		return rs.ScopeSpans().Len() == 0
	})
	return dropped
}

// decideBatch computes the set of span ids to drop without mutating the
// batch, so that a failure here leaves the batch intact.
func (p *spanFilterProcessor) decideBatch(td ptrace.Traces) (drop map[pcommon.SpanID]struct{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			drop = nil
			err = fmt.Errorf("span filter evaluation panic: %v", r)
		}
	}()

	index := make(map[pcommon.SpanID]ptrace.Span)
	rss := td.ResourceSpans()
	for i := 0; i < rss.Len(); i++ {
		scopes := rss.At(i).ScopeSpans()
		for j := 0; j < scopes.Len(); j++ {
			spans := scopes.At(j).Spans()
			for k := 0; k < spans.Len(); k++ {
				s := spans.At(k)
				index[s.SpanID()] = s
			}
		}
	}

	drop = make(map[pcommon.SpanID]struct{})
	for id, span := range index {
		if p.spanFiltered(span, index) {
			drop[id] = struct{}{}
		}
	}
	return drop, nil
}

// spanFiltered decides a single span: a cached decision for the span or any
// reachable ancestor drops it, then the span itself is tested against the
// rules. Cascade decisions are cached for every id on the walked chain.
func (p *spanFilterProcessor) spanFiltered(span ptrace.Span, index map[pcommon.SpanID]ptrace.Span) bool {
	id := span.SpanID()
	if p.cache.Get(id) {
		return true
	}

	visited := map[pcommon.SpanID]struct{}{id: {}}
	chain := []pcommon.SpanID{id}
	parent := span.ParentSpanID()
	for !parent.IsEmpty() {
		if _, seen := visited[parent]; seen {
			// A repeating parent id means a malformed cyclic chain, not a
			// filtering signal.
			break
		}
		if p.cache.Get(parent) {
			p.markFiltered(chain)
			return true
		}
		ps, ok := index[parent]
		if !ok {
			// The ancestor was exported in an earlier batch without being
			// flagged, so it is assumed clean.
			break
		}
		if p.matchSpan(ps) {
			chain = append(chain, parent)
			p.markFiltered(chain)
			return true
		}
		visited[parent] = struct{}{}
		chain = append(chain, parent)
		parent = ps.ParentSpanID()
	}

	if p.matchSpan(span) {
		p.cache.Put(id)
		return true
	}
	return false
}

func (p *spanFilterProcessor) markFiltered(ids []pcommon.SpanID) {
	for _, id := range ids {
		p.cache.Put(id)
	}
}

func (p *spanFilterProcessor) matchSpan(s ptrace.Span) bool {
	return p.engine.MatchesString(s.Name()) || p.engine.MatchesMap(s.Attributes())
}
