// Package filter implements the regex-based event filter engine: a Filter
// pairs a transaction event type pattern with per-attribute key/value
// patterns, and a Set matches a transaction only if every configured
// Filter matches (AND semantics).
package filter

import (
	"fmt"
	"regexp"

	"github.com/croncatio/tm-indexer/internal/domain"
)

// AttributeFilter requires at least one attribute on the matched event
// whose key matches KeyPattern and, if ValuePattern is set, whose value
// also matches ValuePattern.
type AttributeFilter struct {
	KeyPattern   string
	ValuePattern string

	key   *regexp.Regexp
	value *regexp.Regexp
}

// Filter requires an event matching TypePattern with every AttributeFilter
// satisfied against that same event's attributes. Each type-matching event
// is checked on its own; attributes of different events are never combined.
type Filter struct {
	TypePattern string
	Attributes  []AttributeFilter

	typeRe *regexp.Regexp
}

// Compile parses a Filter's regex forms once. Call before Matches.
func Compile(f Filter) (*Filter, error) {
	typeRe, err := regexp.Compile(f.TypePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid type pattern %q: %w", f.TypePattern, err)
	}

	attrs := make([]AttributeFilter, len(f.Attributes))
	for i, a := range f.Attributes {
		keyRe, err := regexp.Compile(a.KeyPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid attribute key pattern %q: %w", a.KeyPattern, err)
		}

		var valueRe *regexp.Regexp
		if a.ValuePattern != "" {
			valueRe, err = regexp.Compile(a.ValuePattern)
			if err != nil {
				return nil, fmt.Errorf("invalid attribute value pattern %q: %w", a.ValuePattern, err)
			}
		}

		attrs[i] = AttributeFilter{
			KeyPattern:   a.KeyPattern,
			ValuePattern: a.ValuePattern,
			key:          keyRe,
			value:        valueRe,
		}
	}

	return &Filter{
		TypePattern: f.TypePattern,
		Attributes:  attrs,
		typeRe:      typeRe,
	}, nil
}

// Matches reports whether tx has at least one event matching TypePattern
// with every AttributeFilter satisfied against that event's attributes.
// The match is counted per event: one count for the type match, one per
// satisfied attribute filter; the filter matches as soon as one event's
// count equals len(Attributes)+1. Other type-matching events that fall
// short do not prevent the match.
func (f *Filter) Matches(tx domain.Transaction) bool {
	for _, event := range tx.Events {
		if !f.typeRe.MatchString(event.Type) {
			continue
		}

		matches := 1
		for _, attrFilter := range f.Attributes {
			if attributeSatisfied(attrFilter, event.Attributes) {
				matches++
			}
		}

		if matches == len(f.Attributes)+1 {
			return true
		}
	}

	return false
}

func attributeSatisfied(af AttributeFilter, attrs []domain.Attribute) bool {
	for _, a := range attrs {
		if !af.key.MatchString(a.Key) {
			continue
		}
		if af.value != nil && !af.value.MatchString(a.Value) {
			continue
		}
		return true
	}
	return false
}

// Set is an immutable, ANDed collection of compiled Filters, safe to
// share across goroutines once built.
type Set struct {
	filters []*Filter
}

// NewSet compiles each Filter in filters and returns the resulting Set.
func NewSet(filters []Filter) (*Set, error) {
	compiled := make([]*Filter, len(filters))
	for i, f := range filters {
		c, err := Compile(f)
		if err != nil {
			return nil, err
		}
		compiled[i] = c
	}
	return &Set{filters: compiled}, nil
}

// Matches reports whether tx passes every filter in the set. An empty
// set matches everything.
func (s *Set) Matches(tx domain.Transaction) bool {
	for _, f := range s.filters {
		if !f.Matches(tx) {
			return false
		}
	}
	return true
}
