// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hemebench/hemebench-mcp/internal/catalog"
	"github.com/hemebench/hemebench-mcp/internal/engine"
)

// MetadataInterpretCase describes the interpret_case tool.
var MetadataInterpretCase = &mcp.Tool{
	Name: "interpret_case",
	Description: "Run a worked diagnostic case through every applicable rule set: its CBC through " +
		"cbc (and anemia-kinetics when MCV and reticulocytes are reported), its coagulation panel " +
		"through coagulation and its positive flow markers through flow. The case's smear review, " +
		"molecular results, mechanism, key features, differential diagnosis and management points " +
		"are returned with the findings.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"case_id"},
		"properties": map[string]interface{}{
			"case_id": map[string]interface{}{
				"type":        "string",
				"description": "Case identifier, e.g. case1.",
			},
		},
	},
}

type InputInterpretCase struct {
	CaseID string `json:"case_id"`
}

type OutputInterpretCase struct {
	CaseID       string                     `json:"case_id"`
	Title        string                     `json:"title"`
	Presentation string                     `json:"presentation,omitempty"`
	Diagnosis    string                     `json:"diagnosis"`
	Findings     []engine.Finding           `json:"findings"`
	Smear        *catalog.Smear             `json:"smear,omitempty"`
	Molecular    []catalog.MolecularFinding `json:"molecular,omitempty"`

	Mechanism        string   `json:"mechanism,omitempty"`
	KeyFeatures      []string `json:"key_features,omitempty"`
	DifferentialDx   []string `json:"differential_dx,omitempty"`
	ManagementPoints []string `json:"management_points,omitempty"`
}

func (h *Handlers) InterpretCase(_ context.Context, _ *mcp.CallToolRequest, input InputInterpretCase) (*mcp.CallToolResult, OutputInterpretCase, error) {
	if input.CaseID == "" {
		return nil, OutputInterpretCase{}, fmt.Errorf("case_id is required")
	}
	report, err := h.engine.InterpretCase(input.CaseID)
	if err != nil {
		return nil, OutputInterpretCase{}, err
	}
	cs := report.Case
	return nil, OutputInterpretCase{
		CaseID:           cs.ID,
		Title:            cs.Title,
		Presentation:     cs.Presentation,
		Diagnosis:        cs.Diagnosis,
		Findings:         report.Findings,
		Smear:            cs.Smear,
		Molecular:        cs.Molecular,
		Mechanism:        cs.Mechanism,
		KeyFeatures:      cs.KeyFeatures,
		DifferentialDx:   cs.DifferentialDx,
		ManagementPoints: cs.ManagementPoints,
	}, nil
}
