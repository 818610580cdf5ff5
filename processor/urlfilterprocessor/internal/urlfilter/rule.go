// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package urlfilter // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/urlfilter"

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var errEmptyPattern = errors.New("rule pattern must not be empty")

// RuleSpec is the loose rule form accepted by NewRule: Pattern holds either a
// plain string (substring match) or a *regexp.Regexp.
type RuleSpec struct {
	Pattern any
}

// Rule matches a candidate string either by case-insensitive substring
// containment or by regular expression. A Rule is immutable once constructed;
// replace it rather than mutating it.
type Rule struct {
	substring string
	re        *regexp.Regexp
}

// NewRule builds a Rule from one of the three accepted specification forms:
// a string, a *regexp.Regexp, or a RuleSpec wrapping either.
func NewRule(spec any) (*Rule, error) {
	switch s := spec.(type) {
	case string:
		if s == "" {
			return nil, errEmptyPattern
		}
		return &Rule{substring: strings.ToLower(s)}, nil
	case *regexp.Regexp:
		if s == nil || s.String() == "" {
			return nil, errEmptyPattern
		}
		return &Rule{re: s}, nil
	case RuleSpec:
		return NewRule(s.Pattern)
	case *RuleSpec:
		if s == nil {
			return nil, errEmptyPattern
		}
		return NewRule(s.Pattern)
	default:
		return nil, fmt.Errorf("unsupported rule specification type %T", spec)
	}
}

// MustNewRule is a test and wiring convenience that panics on an invalid spec.
func MustNewRule(spec any) *Rule {
	r, err := NewRule(spec)
	if err != nil {
		panic(err)
	}
	return r
}

// Matches reports whether the candidate string matches the rule.
func (r *Rule) Matches(candidate string) bool {
	if r.re != nil {
		return r.re.MatchString(candidate)
	}
	return strings.Contains(strings.ToLower(candidate), r.substring)
}

// String returns the pattern the rule was built from.
func (r *Rule) String() string {
	if r.re != nil {
		return r.re.String()
	}
	return r.substring
}
