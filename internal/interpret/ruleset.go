// SPDX-License-Identifier: Apache-2.0

package interpret

import (
	"fmt"
	"strings"
)

// RuleSet is an ordered, immutable collection of rules for one domain.
// Definition order is evaluation and output order.
type RuleSet[O Observation] struct {
	id    string
	rules []Rule[O]
}

func NewRuleSet[O Observation](id string, rules ...Rule[O]) (*RuleSet[O], error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: rule set with empty id", ErrConfiguration)
	}
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r.predicate == nil {
			return nil, fmt.Errorf("%w: rule set %q contains an unconstructed rule", ErrConfiguration, id)
		}
		if _, dup := seen[r.id]; dup {
			return nil, fmt.Errorf("%w: rule set %q has duplicate rule %q", ErrConfiguration, id, r.id)
		}
		seen[r.id] = struct{}{}
	}
	return &RuleSet[O]{id: id, rules: append([]Rule[O](nil), rules...)}, nil
}

func (s *RuleSet[O]) ID() string {
	return s.id
}

func (s *RuleSet[O]) Len() int {
	return len(s.rules)
}

// Rules returns a copy of the rules in definition order.
func (s *RuleSet[O]) Rules() []Rule[O] {
	return append([]Rule[O](nil), s.rules...)
}

// Match is one rule that fired during an evaluation.
type Match struct {
	RuleID string `json:"rule_id"`
	Text   string `json:"text"`
}

// Matches evaluates every rule in order and returns each one that fired.
// A predicate error aborts the evaluation.
func (s *RuleSet[O]) Matches(obs O, ranges *RangeTable) ([]Match, error) {
	out := make([]Match, 0, len(s.rules))
	for _, r := range s.rules {
		ok, err := r.Match(obs, ranges)
		if err != nil {
			return nil, fmt.Errorf("rule set %q, rule %q: %w", s.id, r.id, err)
		}
		if ok {
			out = append(out, Match{RuleID: r.id, Text: r.Describe(obs)})
		}
	}
	return out, nil
}

// Evaluate returns the interpretation of every matching rule in rule-set
// order, duplicates included. No match yields an empty slice; the caller
// picks the wording for that case.
func Evaluate[O Observation](s *RuleSet[O], obs O, ranges *RangeTable) ([]string, error) {
	matches, err := s.Matches(obs, ranges)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Text
	}
	return out, nil
}
