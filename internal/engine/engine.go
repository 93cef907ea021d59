// SPDX-License-Identifier: Apache-2.0

// Package engine is the entry point used by hosts: it resolves rule sets by
// id, evaluates observations against them and classifies single values.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hemebench/hemebench-mcp/internal/catalog"
	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

var (
	ErrUnknownRuleSet = errors.New("unknown rule set")
	ErrUnknownCase    = errors.New("unknown case")
)

// Separator joins interpretations into a one-line summary.
const Separator = " | "

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// Engine holds no mutable state; it is safe for concurrent use.
type Engine struct {
	catalog *catalog.Catalog
	log     zerolog.Logger
}

func New(cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{catalog: cat, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// RuleSets lists the registered rule sets in catalog order.
func (e *Engine) RuleSets() []catalog.RuleSetInfo {
	return e.catalog.RuleSets()
}

// RuleDetails returns the rules of a rule set with their teaching notes.
func (e *Engine) RuleDetails(ruleSetID string) ([]catalog.RuleDetail, error) {
	details, ok := e.catalog.RuleDetails(ruleSetID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleSet, ruleSetID)
	}
	return details, nil
}

// EvaluateLabs runs a labs rule set against numeric observations.
func (e *Engine) EvaluateLabs(ruleSetID string, labs interpret.Labs) ([]string, error) {
	rs, ok := e.catalog.LabRuleSet(ruleSetID)
	if !ok {
		return nil, e.lookupError(ruleSetID, catalog.KindLabs)
	}
	return evaluate(e, rs, labs)
}

// EvaluateMarkers runs a markers rule set against a marker selection.
func (e *Engine) EvaluateMarkers(ruleSetID string, markers interpret.Markers) ([]string, error) {
	rs, ok := e.catalog.MarkerRuleSet(ruleSetID)
	if !ok {
		return nil, e.lookupError(ruleSetID, catalog.KindMarkers)
	}
	return evaluate(e, rs, markers)
}

func evaluate[O interpret.Observation](e *Engine, rs *interpret.RuleSet[O], obs O) ([]string, error) {
	out, err := interpret.Evaluate(rs, obs, e.catalog.Ranges)
	if err != nil {
		return nil, err
	}
	e.log.Debug().
		Str("rule_set", rs.ID()).
		Int("rules", rs.Len()).
		Int("matches", len(out)).
		Msg("evaluated rule set")
	return out, nil
}

func (e *Engine) lookupError(id string, want catalog.Kind) error {
	if info, ok := e.catalog.RuleSet(id); ok {
		return fmt.Errorf("%w: %q is a %s rule set, not %s", ErrUnknownRuleSet, id, info.Kind, want)
	}
	return fmt.Errorf("%w: %q", ErrUnknownRuleSet, id)
}

func (e *Engine) RangeFor(key string) (interpret.Interval, error) {
	return e.catalog.Ranges.RangeFor(key)
}

// Classify places value relative to the reference range of key.
func (e *Engine) Classify(key string, value float64) (interpret.Level, error) {
	iv, err := e.RangeFor(key)
	if err != nil {
		return 0, err
	}
	return iv.Classify(value), nil
}

// ClassifyAll classifies every observation that has a reference range.
// Keys without one are skipped.
func (e *Engine) ClassifyAll(labs interpret.Labs) map[string]interpret.Level {
	out := make(map[string]interpret.Level, len(labs))
	for key, v := range labs {
		if iv, err := e.RangeFor(key); err == nil {
			out[key] = iv.Classify(v)
		}
	}
	return out
}

// Summarize joins interpretations for display. With no interpretations it
// returns the rule set's empty message rendered against obs.
func (e *Engine) Summarize(ruleSetID string, interpretations []string, obs interpret.Observation) string {
	if len(interpretations) > 0 {
		return strings.Join(interpretations, Separator)
	}
	info, ok := e.catalog.RuleSet(ruleSetID)
	if !ok || info.Empty == "" {
		return "No pattern detected"
	}
	return interpret.Render(info.Empty, obs)
}
