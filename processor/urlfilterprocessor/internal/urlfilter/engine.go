// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package urlfilter // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/urlfilter"

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/open-telemetry/opentelemetry-collector-contrib/pkg/pdatautil"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.uber.org/zap"
)

const (
	// maxTraversalDepth is the safety net against unbounded recursion on
	// deeply nested values. Traversal stops past this depth.
	maxTraversalDepth = 10

	// maxInlineKeyLen is the longest raw string used directly as a cache key;
	// longer inputs are keyed by content hash.
	maxInlineKeyLen = 200

	defaultCacheSize = 1000
)

// DefaultTraversalKeys are the map keys whose scalar values are scanned for
// URLs. Scalars under other keys are skipped; nested maps and slices are
// always entered.
var DefaultTraversalKeys = []string{
	"http.url",
	"url",
	"request.url",
	"request_uri",
	"endpoint",
	"uri",
	"path",
	"resource.url",
	"name",
}

// urlPattern matches a URL-shaped substring: an absolute URL with scheme, or
// a rooted path.
var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"']+|/[^\s"']*`)

// Settings configures an Engine.
type Settings struct {
	// TraversalKeys overrides DefaultTraversalKeys when non-nil.
	TraversalKeys []string
	// CacheSize bounds the extraction memo cache. Defaults to 1000.
	CacheSize int
	Logger    *zap.Logger
}

// Engine extracts URL-like substrings from arbitrary pdata values and
// evaluates them against an ordered rule list. Extraction results are
// memoized in an LRU cache keyed by a rule-set version, so any rule mutation
// invalidates all prior results in O(1).
type Engine struct {
	mu            sync.Mutex
	rules         []*Rule
	traversalKeys map[string]struct{}
	cache         *lru.Cache[string, []string]
	version       atomic.Uint64
	logger        *zap.Logger
}

// NewEngine creates an Engine with no rules.
func NewEngine(set Settings) *Engine {
	size := set.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	keys := set.TraversalKeys
	if keys == nil {
		keys = DefaultTraversalKeys
	}
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	logger := set.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// Error only possible for a non-positive size, which is normalized above.
	cache, _ := lru.New[string, []string](size)
	return &Engine{
		traversalKeys: keySet,
		cache:         cache,
		logger:        logger,
	}
}

// AddRule appends a rule and invalidates cached extraction results.
func (e *Engine) AddRule(rule *Rule) *Engine {
	e.mu.Lock()
	e.rules = append(append([]*Rule{}, e.rules...), rule)
	e.mu.Unlock()
	e.version.Add(1)
	return e
}

// RemoveRule removes a previously added rule instance and invalidates cached
// extraction results. Removing a rule that was never added is a no-op.
func (e *Engine) RemoveRule(rule *Rule) *Engine {
	e.mu.Lock()
	rules := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if r != rule {
			rules = append(rules, r)
		}
	}
	e.rules = rules
	e.mu.Unlock()
	e.version.Add(1)
	return e
}

// ClearRules removes all rules and invalidates cached extraction results.
func (e *Engine) ClearRules() *Engine {
	e.mu.Lock()
	e.rules = nil
	e.mu.Unlock()
	e.version.Add(1)
	return e
}

// ClearCache drops all memoized extraction results.
func (e *Engine) ClearCache() {
	e.cache.Purge()
}

// CacheLen returns the number of memoized extraction results.
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}

// RuleCount returns the number of configured rules.
func (e *Engine) RuleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rules)
}

// MatchesString reports whether any URL extracted from s matches any rule.
func (e *Engine) MatchesString(s string) bool {
	return e.matchesAny(e.ExtractFromString(s))
}

// MatchesMap reports whether any URL extracted from m matches any rule.
func (e *Engine) MatchesMap(m pcommon.Map) bool {
	return e.matchesAny(e.ExtractFromMap(m))
}

// MatchesValue reports whether any URL extracted from v matches any rule.
func (e *Engine) MatchesValue(v pcommon.Value) bool {
	return e.matchesAny(e.ExtractFromValue(v))
}

func (e *Engine) matchesAny(candidates []string) bool {
	if len(candidates) == 0 {
		return false
	}
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	for _, c := range candidates {
		for _, r := range rules {
			if r.Matches(c) {
				return true
			}
		}
	}
	return false
}

// ExtractFromString returns the URL-like substrings found in s. Results are
// memoized; extraction never fails, degrading to an empty result instead.
func (e *Engine) ExtractFromString(s string) (urls []string) {
	defer e.recoverExtraction(&urls)
	var key string
	if len(s) <= maxInlineKeyLen {
		key = fmt.Sprintf("%d:%s", e.version.Load(), s)
	} else {
		key = fmt.Sprintf("%d:#%016x", e.version.Load(), xxhash.Sum64String(s))
	}
	if hit, ok := e.cache.Get(key); ok {
		return hit
	}
	urls = extractString(s)
	e.cache.Add(key, urls)
	return urls
}

// ExtractFromMap returns the URL-like substrings found in m, traversing
// nested values and allow-listed keys.
func (e *Engine) ExtractFromMap(m pcommon.Map) (urls []string) {
	defer e.recoverExtraction(&urls)
	key := fmt.Sprintf("%d:#%x", e.version.Load(), pdatautil.MapHash(m))
	if hit, ok := e.cache.Get(key); ok {
		return hit
	}
	urls = e.extractMap(m, 0)
	e.cache.Add(key, urls)
	return urls
}

// ExtractFromValue returns the URL-like substrings found in v, which may be a
// string, a slice, or a map.
func (e *Engine) ExtractFromValue(v pcommon.Value) (urls []string) {
	switch v.Type() {
	case pcommon.ValueTypeStr:
		return e.ExtractFromString(v.Str())
	case pcommon.ValueTypeMap:
		return e.ExtractFromMap(v.Map())
	}
	defer e.recoverExtraction(&urls)
	key := fmt.Sprintf("%d:#%016x", e.version.Load(), xxhash.Sum64String(v.AsString()))
	if hit, ok := e.cache.Get(key); ok {
		return hit
	}
	urls = e.extractValue(v, 0)
	e.cache.Add(key, urls)
	return urls
}

// recoverExtraction is the extraction error boundary: any panic during
// traversal is logged and degrades to no URLs found.
func (e *Engine) recoverExtraction(urls *[]string) {
	if r := recover(); r != nil {
		e.logger.Warn("url extraction failed, treating value as having no URLs", zap.Any("error", r))
		*urls = nil
	}
}

func (e *Engine) extractValue(v pcommon.Value, depth int) []string {
	if depth > maxTraversalDepth {
		e.logger.Warn("url extraction recursion capped", zap.Int("depth", depth))
		return nil
	}
	switch v.Type() {
	case pcommon.ValueTypeStr:
		return extractString(v.Str())
	case pcommon.ValueTypeSlice:
		var urls []string
		s := v.Slice()
		for i := 0; i < s.Len(); i++ {
			urls = append(urls, e.extractValue(s.At(i), depth+1)...)
		}
		return urls
	case pcommon.ValueTypeMap:
		return e.extractMap(v.Map(), depth)
	default:
		return nil
	}
}

func (e *Engine) extractMap(m pcommon.Map, depth int) []string {
	if depth > maxTraversalDepth {
		e.logger.Warn("url extraction recursion capped", zap.Int("depth", depth))
		return nil
	}
	var urls []string
	m.Range(func(k string, v pcommon.Value) bool {
		_, traverse := e.traversalKeys[k]
		if !traverse && v.Type() != pcommon.ValueTypeMap && v.Type() != pcommon.ValueTypeSlice {
			return true
		}
		urls = append(urls, e.extractValue(v, depth+1)...)
		return true
	})
	return urls
}

func extractString(s string) []string {
	if m := urlPattern.FindString(s); m != "" {
		return []string{m}
	}
	return nil
}
