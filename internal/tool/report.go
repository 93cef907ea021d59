// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hemebench/hemebench-mcp/internal/engine"
	"github.com/hemebench/hemebench-mcp/internal/report"
)

// MetadataEvaluateReport describes the evaluate_report tool.
var MetadataEvaluateReport = &mcp.Tool{
	Name: "evaluate_report",
	Description: "Import a free-form lab report (markdown list or table, YAML or JSON), map its " +
		"test names to observation keys and interpret it. Numeric results run through cbc, plus " +
		"anemia-kinetics when MCV and reticulocytes are reported and coagulation when PT and PTT are; " +
		"positive flow markers (\"CD33+\" or \"CD33: positive\") run through flow.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"content"},
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Raw report content.",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Optional format hint: markdown, yaml or json. Detected from content when omitted.",
			},
			"source_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional identifier for the report, used in error messages.",
			},
			"rule_sets": map[string]interface{}{
				"type":        "array",
				"description": "Labs rule sets to run instead of the automatic selection.",
				"items":       map[string]interface{}{"type": "string"},
			},
		},
	},
}

type InputEvaluateReport struct {
	Content  string   `json:"content"`
	Format   string   `json:"format"`
	SourceID string   `json:"source_id"`
	RuleSets []string `json:"rule_sets"`
}

type OutputEvaluateReport struct {
	ParserUsed   string             `json:"parser_used"`
	ReadingCount int                `json:"reading_count"`
	Observations map[string]float64 `json:"observations"`
	Positive     []string           `json:"positive_markers"`
	Negative     []string           `json:"negative_markers"`
	// Unmapped lists report lines that were not recognized as a test or marker.
	Unmapped []string         `json:"unmapped"`
	Findings []engine.Finding `json:"findings"`
}

func (h *Handlers) EvaluateReport(ctx context.Context, _ *mcp.CallToolRequest, input InputEvaluateReport) (*mcp.CallToolResult, OutputEvaluateReport, error) {
	if input.Content == "" {
		return nil, OutputEvaluateReport{}, fmt.Errorf("content is required")
	}
	sourceID := input.SourceID
	if sourceID == "" {
		sourceID = "report"
	}

	result, err := h.pipeline.Run(ctx, report.Source{
		Content: []byte(input.Content),
		Format:  input.Format,
		ID:      sourceID,
	})
	if err != nil {
		return nil, OutputEvaluateReport{}, err
	}

	findings, err := h.engine.InterpretPanel(result.Labs, result.Markers(), input.RuleSets...)
	if err != nil {
		return nil, OutputEvaluateReport{}, err
	}

	return nil, OutputEvaluateReport{
		ParserUsed:   result.ParserUsed,
		ReadingCount: result.ReadingCount,
		Observations: result.Labs,
		Positive:     result.Positive,
		Negative:     result.Negative,
		Unmapped:     result.Unmapped,
		Findings:     findings,
	}, nil
}
