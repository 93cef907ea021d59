// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hemebench/hemebench-mcp/internal/catalog"
)

// MetadataReferenceRange describes the reference_range tool.
var MetadataReferenceRange = &mcp.Tool{
	Name: "reference_range",
	Description: "Return the closed reference interval [low, high] for an observation key. " +
		"When a value is given it is classified as below, within or above the interval; " +
		"values equal to either bound are within.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"key"},
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Observation key, e.g. hgb, mcv, platelets, pt.",
			},
			"value": map[string]interface{}{
				"type":        "number",
				"description": "Optional value to classify against the interval.",
			},
		},
	},
}

type InputReferenceRange struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value,omitempty"`
}

type OutputReferenceRange struct {
	Key   string  `json:"key"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Unit  string  `json:"unit,omitempty"`
	Level string  `json:"level,omitempty"`
}

func (h *Handlers) ReferenceRange(_ context.Context, _ *mcp.CallToolRequest, input InputReferenceRange) (*mcp.CallToolResult, OutputReferenceRange, error) {
	if input.Key == "" {
		return nil, OutputReferenceRange{}, fmt.Errorf("key is required")
	}
	iv, err := h.engine.RangeFor(input.Key)
	if err != nil {
		return nil, OutputReferenceRange{}, err
	}
	out := OutputReferenceRange{Key: input.Key, Low: iv.Low, High: iv.High, Unit: iv.Unit}
	if input.Value != nil {
		out.Level = iv.Classify(*input.Value).String()
	}
	return nil, out, nil
}

// MetadataListRuleSets describes the list_rule_sets tool.
var MetadataListRuleSets = &mcp.Tool{
	Name:        "list_rule_sets",
	Description: "List the available rule sets with their observation kind (labs or markers) and rule count.",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	},
}

type InputListRuleSets struct{}

type OutputListRuleSets struct {
	RuleSets []catalog.RuleSetInfo `json:"rule_sets"`
}

func (h *Handlers) ListRuleSets(_ context.Context, _ *mcp.CallToolRequest, _ InputListRuleSets) (*mcp.CallToolResult, OutputListRuleSets, error) {
	return nil, OutputListRuleSets{RuleSets: h.engine.RuleSets()}, nil
}

// MetadataListMarkers describes the list_markers tool.
var MetadataListMarkers = &mcp.Tool{
	Name:        "list_markers",
	Description: "List flow cytometry markers, optionally filtered by lineage (Progenitor, Myeloid, Monocytic, T-cell, B-cell, Megakaryocytic).",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"lineage": map[string]interface{}{
				"type":        "string",
				"description": "Lineage filter. Empty or All returns every marker.",
			},
		},
	},
}

type InputListMarkers struct {
	Lineage string `json:"lineage"`
}

type OutputListMarkers struct {
	Markers []catalog.Marker `json:"markers"`
}

func (h *Handlers) ListMarkers(_ context.Context, _ *mcp.CallToolRequest, input InputListMarkers) (*mcp.CallToolResult, OutputListMarkers, error) {
	markers := h.engine.Catalog().MarkersByLineage(input.Lineage)
	if markers == nil {
		markers = []catalog.Marker{}
	}
	return nil, OutputListMarkers{Markers: markers}, nil
}
