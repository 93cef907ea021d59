// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"strings"

	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

func compile(doc document) (*Catalog, error) {
	intervals := make(map[string]interpret.Interval, len(doc.Ranges))
	for _, r := range doc.Ranges {
		if _, dup := intervals[r.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate range %q", interpret.ErrConfiguration, r.Key)
		}
		intervals[r.Key] = interpret.Interval{Low: r.Low, High: r.High, Unit: r.Unit}
	}
	ranges, err := interpret.NewRangeTable(intervals)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		Version:    doc.Version,
		Ranges:     ranges,
		entries:    doc.Ranges,
		details:    make(map[string][]RuleDetail, len(doc.RuleSets)),
		labSets:    make(map[string]*interpret.RuleSet[interpret.Labs]),
		markerSets: make(map[string]*interpret.RuleSet[interpret.Markers]),
		markers:    doc.Markers,
		mutations:  doc.Mutations,
		glossary:   doc.Glossary,
		smearCells: doc.SmearCells,
		cases:      make(map[string]Case, len(doc.Cases)),
	}

	for _, spec := range doc.RuleSets {
		if _, dup := cat.RuleSet(spec.ID); dup {
			return nil, fmt.Errorf("%w: duplicate rule set %q", interpret.ErrConfiguration, spec.ID)
		}
		var n int
		switch spec.Kind {
		case KindLabs:
			rs, err := compileLabs(spec, ranges)
			if err != nil {
				return nil, err
			}
			cat.labSets[spec.ID] = rs
			n = rs.Len()
		case KindMarkers:
			rs, err := compileMarkers(spec)
			if err != nil {
				return nil, err
			}
			cat.markerSets[spec.ID] = rs
			n = rs.Len()
		default:
			return nil, fmt.Errorf("%w: rule set %q has unknown kind %q", interpret.ErrConfiguration, spec.ID, spec.Kind)
		}
		cat.details[spec.ID] = ruleDetails(spec)
		cat.infos = append(cat.infos, RuleSetInfo{
			ID:    spec.ID,
			Title: spec.Title,
			Kind:  spec.Kind,
			Rules: n,
			Empty: spec.Empty,
		})
	}

	if err := uniqueNames("mutation", len(doc.Mutations), func(i int) string { return doc.Mutations[i].Gene }); err != nil {
		return nil, err
	}
	if err := uniqueNames("glossary term", len(doc.Glossary), func(i int) string { return doc.Glossary[i].Term }); err != nil {
		return nil, err
	}
	if err := uniqueNames("smear cell", len(doc.SmearCells), func(i int) string { return doc.SmearCells[i].ID }); err != nil {
		return nil, err
	}

	for _, cs := range doc.Cases {
		if _, dup := cat.cases[cs.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate case %q", interpret.ErrConfiguration, cs.ID)
		}
		cat.cases[cs.ID] = cs
		cat.caseOrder = append(cat.caseOrder, cs.ID)
	}

	return cat, nil
}

// compileLabs turns declarative conditions into AllOf predicates. Every
// condition key must have a reference range.
func compileLabs(spec ruleSetSpec, ranges *interpret.RangeTable) (*interpret.RuleSet[interpret.Labs], error) {
	optional := make(map[string]bool, len(spec.OptionalKeys))
	for _, k := range spec.OptionalKeys {
		optional[k] = true
	}

	rules := make([]interpret.Rule[interpret.Labs], 0, len(spec.Rules))
	for _, r := range spec.Rules {
		if len(r.Markers) > 0 {
			return nil, fmt.Errorf("%w: labs rule %q lists markers", interpret.ErrConfiguration, r.ID)
		}
		if len(r.All) == 0 {
			return nil, fmt.Errorf("%w: rule %q has no conditions", interpret.ErrConfiguration, r.ID)
		}
		conds := make([]interpret.Condition, 0, len(r.All))
		for _, c := range r.All {
			if _, err := ranges.RangeFor(c.Key); err != nil {
				return nil, fmt.Errorf("%w: rule %q: no reference range for %q", interpret.ErrConfiguration, r.ID, c.Key)
			}
			level, err := interpret.ParseLevel(c.Level)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.ID, err)
			}
			conds = append(conds, interpret.Condition{
				Key:      c.Key,
				Level:    level,
				Negate:   c.Negate,
				Optional: c.Optional || optional[c.Key],
			})
		}
		rule, err := interpret.NewRule(r.ID, r.Text, interpret.AllOf(conds...))
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return interpret.NewRuleSet(spec.ID, rules...)
}

func compileMarkers(spec ruleSetSpec) (*interpret.RuleSet[interpret.Markers], error) {
	rules := make([]interpret.Rule[interpret.Markers], 0, len(spec.Rules))
	for _, r := range spec.Rules {
		if len(r.All) > 0 {
			return nil, fmt.Errorf("%w: markers rule %q lists lab conditions", interpret.ErrConfiguration, r.ID)
		}
		if len(r.Markers) == 0 {
			return nil, fmt.Errorf("%w: rule %q requires no markers", interpret.ErrConfiguration, r.ID)
		}
		rule, err := interpret.NewRule(r.ID, r.Text, interpret.RequireMarkers(r.Markers...))
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return interpret.NewRuleSet(spec.ID, rules...)
}

func ruleDetails(spec ruleSetSpec) []RuleDetail {
	details := make([]RuleDetail, 0, len(spec.Rules))
	for _, r := range spec.Rules {
		details = append(details, RuleDetail{
			ID:              r.ID,
			Text:            r.Text,
			Mechanism:       r.Mechanism,
			ClinicalContext: r.ClinicalContext,
			Causes:          r.Causes,
		})
	}
	return details
}

// uniqueNames rejects reference entries that share a name, ignoring case.
func uniqueNames(kind string, n int, name func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		key := strings.ToLower(name(i))
		if seen[key] {
			return fmt.Errorf("%w: duplicate %s %q", interpret.ErrConfiguration, kind, name(i))
		}
		seen[key] = true
	}
	return nil
}
