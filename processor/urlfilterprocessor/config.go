// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package urlfilterprocessor // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor"

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/urlfilter"
)

const (
	verbosityNormal = "normal"
	// verbosityTrace bypasses all filtering, forwarding every span and log
	// record unmodified. Used for deep debugging sessions.
	verbosityTrace = "trace"
)

var (
	errRuleOneOf        = errors.New("rule must set exactly one of \"substring\" or \"regexp\"")
	errInvalidVerbosity = errors.New("verbosity must be \"normal\" or \"trace\"")
)

// RuleConfig declares a single URL pattern. Exactly one of Substring
// (case-insensitive containment) or Regexp must be set.
type RuleConfig struct {
	Substring string `mapstructure:"substring"`
	Regexp    string `mapstructure:"regexp"`
}

// Config holds the urlfilter processor configuration.
type Config struct {
	// Rules is the ordered list of URL patterns. Telemetry matching any rule
	// is dropped.
	Rules []RuleConfig `mapstructure:"rules"`

	// TraversalKeys overrides the default allow-list of attribute keys whose
	// scalar values are scanned for URLs.
	TraversalKeys []string `mapstructure:"traversal_keys"`

	// CacheSize bounds the URL extraction memo cache. Defaults to 1000.
	CacheSize int `mapstructure:"cache_size"`

	// DecisionCacheSize bounds the shared span decision cache used for
	// cross-batch cascade filtering. Defaults to 10000. Zero disables
	// cross-batch cascading.
	DecisionCacheSize int `mapstructure:"decision_cache_size"`

	// DecisionCacheTTL is how long a span decision remains usable by later
	// batches. Defaults to 1h.
	DecisionCacheTTL time.Duration `mapstructure:"decision_cache_ttl"`

	// Verbosity set to "trace" bypasses all filtering.
	Verbosity string `mapstructure:"verbosity"`

	// prevent unkeyed literal initialization
	_ struct{}
}

// Validate checks the processor configuration.
func (cfg *Config) Validate() error {
	var errs error
	for i, rc := range cfg.Rules {
		if (rc.Substring == "") == (rc.Regexp == "") {
			errs = multierr.Append(errs, fmt.Errorf("rules[%d]: %w", i, errRuleOneOf))
			continue
		}
		if rc.Regexp != "" {
			if _, err := regexp.Compile(rc.Regexp); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("rules[%d]: invalid regexp: %w", i, err))
			}
		}
	}
	if cfg.CacheSize < 0 {
		errs = multierr.Append(errs, errors.New("cache_size must not be negative"))
	}
	if cfg.DecisionCacheSize < 0 {
		errs = multierr.Append(errs, errors.New("decision_cache_size must not be negative"))
	}
	if cfg.DecisionCacheTTL < 0 {
		errs = multierr.Append(errs, errors.New("decision_cache_ttl must not be negative"))
	}
	if cfg.Verbosity != "" && cfg.Verbosity != verbosityNormal && cfg.Verbosity != verbosityTrace {
		errs = multierr.Append(errs, errInvalidVerbosity)
	}
	return errs
}

func (cfg *Config) bypass() bool {
	return cfg.Verbosity == verbosityTrace
}

// buildEngine compiles the configured rules into an extraction engine.
func buildEngine(cfg *Config, logger *zap.Logger) (*urlfilter.Engine, error) {
	engine := urlfilter.NewEngine(urlfilter.Settings{
		TraversalKeys: cfg.TraversalKeys,
		CacheSize:     cfg.CacheSize,
		Logger:        logger,
	})
	for i, rc := range cfg.Rules {
		spec := any(rc.Substring)
		if rc.Regexp != "" {
			re, err := regexp.Compile(rc.Regexp)
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
			spec = re
		}
		rule, err := urlfilter.NewRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		engine.AddRule(rule)
	}
	return engine, nil
}
