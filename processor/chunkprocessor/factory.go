// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package chunkprocessor // import "github.com/observek/opentelemetry-collector-components/processor/chunkprocessor"

import (
	"context"
	"fmt"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/processor"
)

// componentType is the value of the "type" key in configuration.
var componentType = component.MustNewType("chunk")

const (
	stability = component.StabilityLevelBeta

	defaultMaxChunkChars = 8000
	defaultEventName     = "chunk"
)

// NewFactory creates a factory for the chunk processor.
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
		MaxChunkChars: defaultMaxChunkChars,
		EventName:     defaultEventName,
	}
}

func createTracesProcessor(_ context.Context, set processor.Settings, cfg component.Config, next consumer.Traces) (processor.Traces, error) {
	oCfg, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type: %+v", cfg)
	}
	return newChunkTracesProcessor(oCfg, set.Logger, next), nil
}

func createLogsProcessor(_ context.Context, set processor.Settings, cfg component.Config, next consumer.Logs) (processor.Logs, error) {
	oCfg, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type: %+v", cfg)
	}
	return newChunkLogsProcessor(oCfg, set.Logger, next), nil
}
