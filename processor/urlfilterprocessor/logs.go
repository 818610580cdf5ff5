// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package urlfilterprocessor // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor"

import (
	"context"
	"fmt"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.uber.org/zap"

	"github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/urlfilter"
)

// logFilterProcessor drops log records whose body or attributes match a URL
// rule.
type logFilterProcessor struct {
	engine *urlfilter.Engine
	next   consumer.Logs
	logger *zap.Logger
	bypass bool
}

func newLogFilterProcessor(cfg *Config, logger *zap.Logger, next consumer.Logs) (*logFilterProcessor, error) {
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &logFilterProcessor{
		engine: engine,
		next:   next,
		logger: logger,
		bypass: cfg.bypass(),
	}, nil
}

// Start is invoked during service startup.
func (p *logFilterProcessor) Start(context.Context, component.Host) error {
	return nil
}

// Shutdown is invoked during service shutdown.
func (p *logFilterProcessor) Shutdown(context.Context) error {
	return nil
}

// Capabilities returns the consumer's capabilities.
func (p *logFilterProcessor) Capabilities() consumer.Capabilities {
	return consumer.Capabilities{MutatesData: true}
}

// ConsumeLogs filters the batch and forwards whatever remains. A failure of
// the partition step forwards the entire batch unfiltered rather than losing
// it.
func (p *logFilterProcessor) ConsumeLogs(ctx context.Context, ld plog.Logs) error {
	if p.bypass {
		return p.next.ConsumeLogs(ctx, ld)
	}

	total := ld.LogRecordCount()
	dropped := p.filterLogRecords(ld)
	if dropped > 0 {
		p.logger.Debug("dropped log records matching url filter rules",
			zap.Int("dropped", dropped),
			zap.Int("remaining", total-dropped))
	}
	if ld.ResourceLogs().Len() == 0 {
		return nil
	}
	return p.next.ConsumeLogs(ctx, ld)
}

func (p *logFilterProcessor) filterLogRecords(ld plog.Logs) int {
	decisions, err := p.decideBatch(ld)
	if err != nil {
		p.logger.Error("log filtering failed, forwarding batch unfiltered",
			zap.Int("records", ld.LogRecordCount()), zap.Error(err))
		return 0
	}

	dropped := 0
	idx := 0
	rls := ld.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		scopes := rls.At(i).ScopeLogs()
		for j := 0; j < scopes.Len(); j++ {
			scopes.At(j).LogRecords().RemoveIf(func(plog.LogRecord) bool {
				drop := decisions[idx]
				idx++
				if drop {
					dropped++
				}
				return drop
			})
		}
		scopes.RemoveIf(func(sl plog.ScopeLogs) bool {
			return sl.LogRecords().Len() == 0
		})
	}
	rls.RemoveIf(func(rl plog.ResourceLogs) bool {
		return rl.ScopeLogs().Len() == 0
	})
	return dropped
}

// decideBatch evaluates every record without mutating the batch. Decisions
// are returned in traversal order, matching the later removal pass.
func (p *logFilterProcessor) decideBatch(ld plog.Logs) (decisions []bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			decisions = nil
			err = fmt.Errorf("log filter evaluation panic: %v", r)
		}
	}()

	decisions = make([]bool, 0, ld.LogRecordCount())
	rls := ld.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		scopes := rls.At(i).ScopeLogs()
		for j := 0; j < scopes.Len(); j++ {
			records := scopes.At(j).LogRecords()
			for k := 0; k < records.Len(); k++ {
				decisions = append(decisions, p.matchRecord(records.At(k)))
			}
		}
	}
	return decisions, nil
}

func (p *logFilterProcessor) matchRecord(lr plog.LogRecord) bool {
	return p.engine.MatchesValue(lr.Body()) || p.engine.MatchesMap(lr.Attributes())
}
