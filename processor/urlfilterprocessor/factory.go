// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package urlfilterprocessor // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor"

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/processor"

	"github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/decisioncache"
)

// componentType is the value of the "type" key in configuration.
var componentType = component.MustNewType("urlfilter")

const (
	stability = component.StabilityLevelBeta

	defaultDecisionCacheSize = 10_000
	defaultDecisionCacheTTL  = time.Hour
)

// The decision cache is shared by every urlfilter traces processor in the
// process, so a cascade decision made in one pipeline is visible to all.
// Sizing comes from the first processor that needs it.
var (
	sharedDecisionCacheOnce sync.Once
	sharedDecisionCache     decisioncache.Cache
)

// NewFactory creates a factory for the urlfilter processor.
func NewFactory() processor.Factory {
	return processor.NewFactory(
		componentType,
		createDefaultConfig,
		processor.WithTraces(createTracesProcessor, stability),
		processor.WithLogs(createLogsProcessor, stability),
	)
}

func createDefaultConfig() component.Config {
	return &Config{
		DecisionCacheSize: defaultDecisionCacheSize,
		DecisionCacheTTL:  defaultDecisionCacheTTL,
		Verbosity:         verbosityNormal,
	}
}

func createTracesProcessor(_ context.Context, set processor.Settings, cfg component.Config, next consumer.Traces) (processor.Traces, error) {
	oCfg, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type: %+v", cfg)
	}
	return newSpanFilterProcessor(oCfg, set.Logger, processDecisionCache(oCfg), next)
}

func createLogsProcessor(_ context.Context, set processor.Settings, cfg component.Config, next consumer.Logs) (processor.Logs, error) {
	oCfg, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type: %+v", cfg)
	}
	return newLogFilterProcessor(oCfg, set.Logger, next)
}

func processDecisionCache(cfg *Config) decisioncache.Cache {
	sharedDecisionCacheOnce.Do(func() {
		if cfg.DecisionCacheSize == 0 {
			sharedDecisionCache = decisioncache.NewNopDecisionCache()
			return
		}
		sharedDecisionCache = decisioncache.NewLRUDecisionCache(cfg.DecisionCacheSize, cfg.DecisionCacheTTL)
	})
	return sharedDecisionCache
}
