// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package chunkprocessor // import "github.com/observek/opentelemetry-collector-components/processor/chunkprocessor"

import (
	"errors"

	"go.uber.org/multierr"
)

var (
	errInvalidMaxChunkChars = errors.New("max_chunk_chars must be positive")
	errEmptyEventName       = errors.New("event_name must not be empty")
)

// Config holds the chunk processor configuration.
type Config struct {
	// MaxChunkChars is the largest string a single field may carry before it
	// is split. Defaults to 8000.
	MaxChunkChars int `mapstructure:"max_chunk_chars"`

	// KeepOriginalKey retains the original field with a truncated preview of
	// the first MaxChunkChars characters instead of removing it.
	KeepOriginalKey bool `mapstructure:"keep_original_key"`

	// EventName is the suffix of synthetic chunk events emitted on spans,
	// named "{scope}/{event_name}". Defaults to "chunk".
	EventName string `mapstructure:"event_name"`

	// prevent unkeyed literal initialization
	_ struct{}
}

// Validate checks the processor configuration.
func (cfg *Config) Validate() error {
	var errs error
	if cfg.MaxChunkChars <= 0 {
		errs = multierr.Append(errs, errInvalidMaxChunkChars)
	}
	if cfg.EventName == "" {
		errs = multierr.Append(errs, errEmptyEventName)
	}
	return errs
}
