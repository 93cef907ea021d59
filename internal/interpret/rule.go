// SPDX-License-Identifier: Apache-2.0

package interpret

import (
	"fmt"
	"strings"
)

// Predicate decides whether a rule applies to an observation set. It must not
// mutate its inputs.
type Predicate[O Observation] func(obs O, ranges *RangeTable) (bool, error)

// Rule pairs a predicate with the interpretation it emits when the predicate
// holds.
type Rule[O Observation] struct {
	id        string
	template  string
	predicate Predicate[O]
}

// NewRule validates and builds a rule. The template may reference observation
// fields as {tag}.
func NewRule[O Observation](id, template string, predicate Predicate[O]) (Rule[O], error) {
	if strings.TrimSpace(id) == "" {
		return Rule[O]{}, fmt.Errorf("%w: rule with empty id", ErrConfiguration)
	}
	if strings.TrimSpace(template) == "" {
		return Rule[O]{}, fmt.Errorf("%w: rule %q has an empty template", ErrConfiguration, id)
	}
	if predicate == nil {
		return Rule[O]{}, fmt.Errorf("%w: rule %q has no predicate", ErrConfiguration, id)
	}
	return Rule[O]{id: id, template: template, predicate: predicate}, nil
}

func (r Rule[O]) ID() string {
	return r.id
}

func (r Rule[O]) Template() string {
	return r.template
}

func (r Rule[O]) Match(obs O, ranges *RangeTable) (bool, error) {
	return r.predicate(obs, ranges)
}

// Describe renders the interpretation. It should only be called after Match
// returned true.
func (r Rule[O]) Describe(obs O) string {
	return Render(r.template, obs)
}

// Condition tests one numeric observation against its reference interval.
type Condition struct {
	Key   string
	Level Level
	// Negate inverts the outcome, including the outcome for an absent
	// optional key.
	Negate bool
	// Optional keys evaluate to false when absent instead of failing.
	Optional bool
}

func (c Condition) Holds(obs Labs, ranges *RangeTable) (bool, error) {
	var v float64
	if c.Optional {
		val, ok := obs.Optional(c.Key)
		if !ok {
			return c.Negate, nil
		}
		v = val
	} else {
		val, err := obs.Value(c.Key)
		if err != nil {
			return false, err
		}
		v = val
	}
	iv, err := ranges.RangeFor(c.Key)
	if err != nil {
		return false, err
	}
	return (iv.Classify(v) == c.Level) != c.Negate, nil
}

func (c Condition) String() string {
	s := c.Key + " " + c.Level.String()
	if c.Negate {
		s = "not " + s
	}
	return s
}

// AllOf holds when every condition holds. Conditions are checked in order and
// checking stops at the first one that does not hold.
func AllOf(conds ...Condition) Predicate[Labs] {
	conds = append([]Condition(nil), conds...)
	return func(obs Labs, ranges *RangeTable) (bool, error) {
		for _, c := range conds {
			ok, err := c.Holds(obs, ranges)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// RequireMarkers holds when the selection contains every listed marker.
// Additional selected markers do not matter.
func RequireMarkers(ids ...string) Predicate[Markers] {
	ids = append([]string(nil), ids...)
	return func(obs Markers, _ *RangeTable) (bool, error) {
		return obs.HasAll(ids...), nil
	}
}
