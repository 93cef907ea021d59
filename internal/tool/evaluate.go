// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

// NoSelectionMessage is returned by evaluate_markers for an empty panel.
const NoSelectionMessage = "Select markers to build a panel and see interpretation"

// MetadataEvaluateLabs describes the evaluate_labs tool.
var MetadataEvaluateLabs = &mcp.Tool{
	Name: "evaluate_labs",
	Description: "Interpret numeric lab observations (CBC, differential, reticulocytes, coagulation) " +
		"against a HemeBench rule set. Every matching rule is reported in rule-set order; " +
		"several findings can co-occur. Each observation is also classified as below, within " +
		"or above its reference range.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"observations"},
		"properties": map[string]interface{}{
			"rule_set": map[string]interface{}{
				"type":        "string",
				"description": "Rule set id. One of: cbc, anemia-kinetics, coagulation. Defaults to cbc.",
			},
			"observations": map[string]interface{}{
				"type":                 "object",
				"description":          "Observation values keyed by test, e.g. {\"hgb\": 9.5, \"mcv\": 72}.",
				"additionalProperties": map[string]interface{}{"type": "number"},
			},
		},
	},
}

// InputEvaluateLabs is the input for the EvaluateLabs tool.
type InputEvaluateLabs struct {
	RuleSet      string             `json:"rule_set"`
	Observations map[string]float64 `json:"observations"`
}

// OutputEvaluateLabs is the output for the EvaluateLabs tool.
type OutputEvaluateLabs struct {
	RuleSet string `json:"rule_set"`
	// Interpretations lists matched rules in rule-set order.
	Interpretations []string `json:"interpretations"`
	// Summary is the joined interpretations, or the rule set's normal message.
	Summary string `json:"summary"`
	// Levels maps each observation with a reference range to below, within or above.
	Levels map[string]string `json:"levels"`
}

// EvaluateLabs runs a labs rule set over the provided observations.
func (h *Handlers) EvaluateLabs(_ context.Context, _ *mcp.CallToolRequest, input InputEvaluateLabs) (*mcp.CallToolResult, OutputEvaluateLabs, error) {
	if len(input.Observations) == 0 {
		return nil, OutputEvaluateLabs{}, fmt.Errorf("observations are required")
	}
	ruleSet := input.RuleSet
	if ruleSet == "" {
		ruleSet = "cbc"
	}

	labs := interpret.Labs(input.Observations)
	out, err := h.engine.EvaluateLabs(ruleSet, labs)
	if err != nil {
		return nil, OutputEvaluateLabs{}, err
	}

	levels := make(map[string]string, len(labs))
	for key, level := range h.engine.ClassifyAll(labs) {
		levels[key] = level.String()
	}

	return nil, OutputEvaluateLabs{
		RuleSet:         ruleSet,
		Interpretations: out,
		Summary:         h.engine.Summarize(ruleSet, out, labs),
		Levels:          levels,
	}, nil
}

// MetadataEvaluateMarkers describes the evaluate_markers tool.
var MetadataEvaluateMarkers = &mcp.Tool{
	Name: "evaluate_markers",
	Description: "Interpret a flow cytometry panel. A pattern matches when the selected markers " +
		"include all of the pattern's required markers; extra markers do not prevent a match.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"rule_set": map[string]interface{}{
				"type":        "string",
				"description": "Rule set id. Defaults to flow.",
			},
			"markers": map[string]interface{}{
				"type":        "array",
				"description": "Selected marker identifiers, e.g. [\"CD34\", \"CD19\", \"CD10\"].",
				"items":       map[string]interface{}{"type": "string"},
			},
		},
	},
}

// InputEvaluateMarkers is the input for the EvaluateMarkers tool.
type InputEvaluateMarkers struct {
	RuleSet string   `json:"rule_set"`
	Markers []string `json:"markers"`
}

// OutputEvaluateMarkers is the output for the EvaluateMarkers tool.
type OutputEvaluateMarkers struct {
	RuleSet string `json:"rule_set"`
	// Selected lists the distinct markers in selection order.
	Selected        []string `json:"selected"`
	Interpretations []string `json:"interpretations"`
	Summary         string   `json:"summary"`
}

// EvaluateMarkers runs a markers rule set over the selected markers.
func (h *Handlers) EvaluateMarkers(_ context.Context, _ *mcp.CallToolRequest, input InputEvaluateMarkers) (*mcp.CallToolResult, OutputEvaluateMarkers, error) {
	ruleSet := input.RuleSet
	if ruleSet == "" {
		ruleSet = "flow"
	}

	markers := interpret.NewMarkers(input.Markers...)
	if markers.Len() == 0 {
		return nil, OutputEvaluateMarkers{
			RuleSet:         ruleSet,
			Selected:        []string{},
			Interpretations: []string{},
			Summary:         NoSelectionMessage,
		}, nil
	}

	out, err := h.engine.EvaluateMarkers(ruleSet, markers)
	if err != nil {
		return nil, OutputEvaluateMarkers{}, err
	}

	return nil, OutputEvaluateMarkers{
		RuleSet:         ruleSet,
		Selected:        markers.IDs(),
		Interpretations: out,
		Summary:         h.engine.Summarize(ruleSet, out, markers),
	}, nil
}
