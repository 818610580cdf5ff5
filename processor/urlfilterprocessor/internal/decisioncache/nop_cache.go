// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package decisioncache // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/decisioncache"

import "go.opentelemetry.io/collector/pdata/pcommon"

type nopCache struct{}

var _ Cache = (*nopCache)(nil)

// NewNopDecisionCache returns a Cache that stores nothing. It backs the
// zero-capacity configuration, where cross-batch cascading is disabled.
func NewNopDecisionCache() Cache {
	return nopCache{}
}

func (nopCache) Get(pcommon.SpanID) bool { return false }
func (nopCache) Put(pcommon.SpanID)      {}
func (nopCache) Delete(pcommon.SpanID)   {}
