// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package decisioncache holds filtering decisions about spans so that a
// decision made for an ancestor in one batch can be applied to descendants
// exported in later batches.
package decisioncache // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/decisioncache"

import (
	"go.opentelemetry.io/collector/pdata/pcommon"
)

// Cache is a bounded store of span filtering decisions. Implementations must
// be safe for concurrent use by overlapping export calls.
type Cache interface {
	// Get reports whether a drop decision is recorded for the span id.
	Get(id pcommon.SpanID) bool
	// Put records a drop decision for the span id.
	Put(id pcommon.SpanID)
	// Delete removes any decision recorded for the span id.
	Delete(id pcommon.SpanID)
}
