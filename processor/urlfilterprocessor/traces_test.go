// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package urlfilterprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/consumer/consumertest"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/decisioncache"
)

var testTraceID = pcommon.TraceID([16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})

func testSpanID(b byte) pcommon.SpanID {
	return pcommon.SpanID([8]byte{b, 0, 0, 0, 0, 0, 0, 1})
}

type testSpan struct {
	id     byte
	parent byte // zero means no parent
	name   string
	attrs  map[string]string
}

func buildTraces(spans ...testSpan) ptrace.Traces {
	td := ptrace.NewTraces()
	ss := td.ResourceSpans().AppendEmpty().ScopeSpans().AppendEmpty()
	ss.Scope().SetName("test-scope")
	for _, ts := range spans {
		s := ss.Spans().AppendEmpty()
		s.SetTraceID(testTraceID)
		s.SetSpanID(testSpanID(ts.id))
		if ts.parent != 0 {
			s.SetParentSpanID(testSpanID(ts.parent))
		}
		s.SetName(ts.name)
		for k, v := range ts.attrs {
			s.Attributes().PutStr(k, v)
		}
	}
	return td
}

func exportedSpanNames(sink *consumertest.TracesSink) []string {
	var names []string
	for _, td := range sink.AllTraces() {
		rss := td.ResourceSpans()
		for i := 0; i < rss.Len(); i++ {
			scopes := rss.At(i).ScopeSpans()
			for j := 0; j < scopes.Len(); j++ {
				spans := scopes.At(j).Spans()
				for k := 0; k < spans.Len(); k++ {
					names = append(names, spans.At(k).Name())
				}
			}
		}
	}
	return names
}

func newTestSpanFilter(t *testing.T, cfg *Config, next consumer.Traces) *spanFilterProcessor {
	p, err := newSpanFilterProcessor(cfg, zaptest.NewLogger(t),
		decisioncache.NewLRUDecisionCache(100, time.Hour), next)
	require.NoError(t, err)
	return p
}

func healthRuleConfig() *Config {
	return &Config{
		Rules:             []RuleConfig{{Substring: "/health"}},
		DecisionCacheSize: defaultDecisionCacheSize,
		DecisionCacheTTL:  defaultDecisionCacheTTL,
	}
}

func TestDropsSpanMatchingOwnName(t *testing.T) {
	sink := new(consumertest.TracesSink)
	p := newTestSpanFilter(t, healthRuleConfig(), sink)

	td := buildTraces(
		testSpan{id: 1, name: "/health/live"},
		testSpan{id: 2, name: "/users/7"},
	)
	require.NoError(t, p.ConsumeTraces(context.Background(), td))

	assert.Equal(t, []string{"/users/7"}, exportedSpanNames(sink))
}

func TestDropsSpanMatchingAttributes(t *testing.T) {
	sink := new(consumertest.TracesSink)
	p := newTestSpanFilter(t, healthRuleConfig(), sink)

	td := buildTraces(
		testSpan{id: 1, name: "GET", attrs: map[string]string{"http.url": "/health/live"}},
		testSpan{id: 2, name: "GET", attrs: map[string]string{"http.url": "/users/7"}},
	)
	require.NoError(t, p.ConsumeTraces(context.Background(), td))

	require.Len(t, sink.AllTraces(), 1)
	assert.Equal(t, 1, sink.AllTraces()[0].SpanCount())
}

func TestCascadeThreeGenerations(t *testing.T) {
	sink := new(consumertest.TracesSink)
	p := newTestSpanFilter(t, healthRuleConfig(), sink)

	// Only the root matches; the descendants carry no matching pattern.
	td := buildTraces(
		testSpan{id: 1, name: "root", attrs: map[string]string{"http.url": "/health/live"}},
		testSpan{id: 2, parent: 1, name: "child"},
		testSpan{id: 3, parent: 2, name: "grandchild"},
	)
	require.NoError(t, p.ConsumeTraces(context.Background(), td))

	assert.Empty(t, sink.AllTraces())
}

func TestCascadeAcrossBatches(t *testing.T) {
	sink := new(consumertest.TracesSink)
	p := newTestSpanFilter(t, healthRuleConfig(), sink)
	ctx := context.Background()

	require.NoError(t, p.ConsumeTraces(ctx,
		buildTraces(testSpan{id: 1, name: "root", attrs: map[string]string{"http.url": "/health/live"}})))
	require.NoError(t, p.ConsumeTraces(ctx,
		buildTraces(testSpan{id: 2, parent: 1, name: "child"})))
	require.NoError(t, p.ConsumeTraces(ctx,
		buildTraces(testSpan{id: 3, parent: 2, name: "grandchild"})))

	assert.Empty(t, sink.AllTraces())
}

func TestCyclicParentChainRetained(t *testing.T) {
	sink := new(consumertest.TracesSink)
	p := newTestSpanFilter(t, healthRuleConfig(), sink)

	// A cyclic parent chain is malformed input, not a filtering signal.
	td := buildTraces(
		testSpan{id: 1, parent: 2, name: "a"},
		testSpan{id: 2, parent: 1, name: "b"},
	)
	require.NoError(t, p.ConsumeTraces(context.Background(), td))

	require.Len(t, sink.AllTraces(), 1)
	assert.Equal(t, 2, sink.AllTraces()[0].SpanCount())
}

func TestUnknownCleanParentRetained(t *testing.T) {
	sink := new(consumertest.TracesSink)
	p := newTestSpanFilter(t, healthRuleConfig(), sink)

	// The parent is neither cached nor in the batch: it was exported earlier
	// without being flagged, so the child is assumed clean.
	td := buildTraces(testSpan{id: 2, parent: 99, name: "child"})
	require.NoError(t, p.ConsumeTraces(context.Background(), td))

	require.Len(t, sink.AllTraces(), 1)
	assert.Equal(t, 1, sink.AllTraces()[0].SpanCount())
}

func TestTraceVerbosityBypassesFiltering(t *testing.T) {
	sink := new(consumertest.TracesSink)
	cfg := healthRuleConfig()
	cfg.Verbosity = verbosityTrace
	p := newTestSpanFilter(t, cfg, sink)

	td := buildTraces(testSpan{id: 1, name: "/health/live"})
	require.NoError(t, p.ConsumeTraces(context.Background(), td))

	assert.Equal(t, []string{"/health/live"}, exportedSpanNames(sink))
}

func TestFilteredBatchNotForwardedWhenEmpty(t *testing.T) {
	sink := new(consumertest.TracesSink)
	p := newTestSpanFilter(t, healthRuleConfig(), sink)

	td := buildTraces(testSpan{id: 1, name: "/health/live"})
	require.NoError(t, p.ConsumeTraces(context.Background(), td))

	assert.Empty(t, sink.AllTraces())
}

func TestEvaluationFailureForwardsBatchUnfiltered(t *testing.T) {
	sink := new(consumertest.TracesSink)
	p := newTestSpanFilter(t, healthRuleConfig(), sink)
	// A broken engine must never lose the batch: evaluation panics are
	// recovered and the batch goes downstream unfiltered.
	p.engine = nil

	td := buildTraces(
		testSpan{id: 1, name: "/health/live"},
		testSpan{id: 2, name: "/users/7"},
	)
	require.NoError(t, p.ConsumeTraces(context.Background(), td))

	require.Len(t, sink.AllTraces(), 1)
	assert.Equal(t, 2, sink.AllTraces()[0].SpanCount())
}

func TestDownstreamErrorPropagated(t *testing.T) {
	downstreamErr := errors.New("sink unavailable")
	p := newTestSpanFilter(t, healthRuleConfig(), consumertest.NewErr(downstreamErr))

	td := buildTraces(testSpan{id: 1, name: "/users/7"})
	err := p.ConsumeTraces(context.Background(), td)
	assert.ErrorIs(t, err, downstreamErr)
}

func TestCapabilitiesMutatesData(t *testing.T) {
	p := newTestSpanFilter(t, healthRuleConfig(), consumertest.NewNop())
	assert.True(t, p.Capabilities().MutatesData)
}

func TestStartShutdown(t *testing.T) {
	p := newTestSpanFilter(t, healthRuleConfig(), consumertest.NewNop())
	ctx := context.Background()
	require.NoError(t, p.Start(ctx, nil))
	require.NoError(t, p.Shutdown(ctx))
}

func BenchmarkConsumeTraces(b *testing.B) {
	p, err := newSpanFilterProcessor(healthRuleConfig(), zap.NewNop(),
		decisioncache.NewLRUDecisionCache(10_000, time.Hour), consumertest.NewNop())
	require.NoError(b, err)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		td := buildTraces(
			testSpan{id: 1, name: "root", attrs: map[string]string{"http.url": "/health/live"}},
			testSpan{id: 2, parent: 1, name: "child"},
			testSpan{id: 3, name: "GET", attrs: map[string]string{"http.url": "/users/7"}},
		)
		if err := p.ConsumeTraces(ctx, td); err != nil {
			b.Fatal(err)
		}
	}
}
