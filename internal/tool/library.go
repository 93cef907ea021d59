// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hemebench/hemebench-mcp/internal/catalog"
)

// MetadataListMutations describes the list_mutations tool.
var MetadataListMutations = &mcp.Tool{
	Name: "list_mutations",
	Description: "List molecular markers with their associated diseases, pathway, prognosis, " +
		"clinical significance and treatment implications, optionally filtered by disease " +
		"category (AML, MPN, MDS, CML, ALL, Lymphoma).",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Disease category filter. Empty or All returns every mutation.",
			},
		},
	},
}

type InputListMutations struct {
	Category string `json:"category"`
}

type OutputListMutations struct {
	Mutations []catalog.Mutation `json:"mutations"`
}

func (h *Handlers) ListMutations(_ context.Context, _ *mcp.CallToolRequest, input InputListMutations) (*mcp.CallToolResult, OutputListMutations, error) {
	mutations := h.engine.Catalog().MutationsByCategory(input.Category)
	if mutations == nil {
		mutations = []catalog.Mutation{}
	}
	return nil, OutputListMutations{Mutations: mutations}, nil
}

// MetadataGlossary describes the glossary tool.
var MetadataGlossary = &mcp.Tool{
	Name: "glossary",
	Description: "Search the hematology glossary. A term matches when its name, definition or a " +
		"synonym contains the query, ignoring case.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search text. Empty returns every term in the category.",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"description": "One of morphology, lab, molecular, clinical. Empty or all searches every category.",
			},
		},
	},
}

type InputGlossary struct {
	Query    string `json:"query"`
	Category string `json:"category"`
}

type OutputGlossary struct {
	Entries []catalog.GlossaryEntry `json:"entries"`
}

func (h *Handlers) Glossary(_ context.Context, _ *mcp.CallToolRequest, input InputGlossary) (*mcp.CallToolResult, OutputGlossary, error) {
	entries := h.engine.Catalog().SearchGlossary(input.Query, input.Category)
	if entries == nil {
		entries = []catalog.GlossaryEntry{}
	}
	return nil, OutputGlossary{Entries: entries}, nil
}

// MetadataNormalSmear describes the normal_smear tool.
var MetadataNormalSmear = &mcp.Tool{
	Name: "normal_smear",
	Description: "Describe the normal peripheral smear appearance of blood cells: size, nucleus, " +
		"cytoplasm, expected frequency and key features.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"cell": map[string]interface{}{
				"type":        "string",
				"description": "Cell id (rbc, neutrophil, lymphocyte, monocyte, eosinophil, basophil, platelet). Empty returns every cell.",
			},
		},
	},
}

type InputNormalSmear struct {
	Cell string `json:"cell"`
}

type OutputNormalSmear struct {
	Cells []catalog.SmearCell `json:"cells"`
}

func (h *Handlers) NormalSmear(_ context.Context, _ *mcp.CallToolRequest, input InputNormalSmear) (*mcp.CallToolResult, OutputNormalSmear, error) {
	cat := h.engine.Catalog()
	if input.Cell == "" {
		cells := cat.SmearCells()
		if cells == nil {
			cells = []catalog.SmearCell{}
		}
		return nil, OutputNormalSmear{Cells: cells}, nil
	}
	cell, ok := cat.SmearCell(input.Cell)
	if !ok {
		return nil, OutputNormalSmear{}, fmt.Errorf("unknown smear cell %q", input.Cell)
	}
	return nil, OutputNormalSmear{Cells: []catalog.SmearCell{cell}}, nil
}

// MetadataDescribeRuleSet describes the describe_rule_set tool.
var MetadataDescribeRuleSet = &mcp.Tool{
	Name: "describe_rule_set",
	Description: "List the rules of a rule set in evaluation order with their interpretation text " +
		"and, where the catalog carries them, the mechanism, clinical context and causes " +
		"(e.g. the PT/PTT pattern matrix of the coagulation rule set).",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"rule_set"},
		"properties": map[string]interface{}{
			"rule_set": map[string]interface{}{
				"type":        "string",
				"description": "Rule set id, e.g. coagulation.",
			},
		},
	},
}

type InputDescribeRuleSet struct {
	RuleSet string `json:"rule_set"`
}

type OutputDescribeRuleSet struct {
	RuleSet string               `json:"rule_set"`
	Rules   []catalog.RuleDetail `json:"rules"`
}

func (h *Handlers) DescribeRuleSet(_ context.Context, _ *mcp.CallToolRequest, input InputDescribeRuleSet) (*mcp.CallToolResult, OutputDescribeRuleSet, error) {
	if input.RuleSet == "" {
		return nil, OutputDescribeRuleSet{}, fmt.Errorf("rule_set is required")
	}
	rules, err := h.engine.RuleDetails(input.RuleSet)
	if err != nil {
		return nil, OutputDescribeRuleSet{}, err
	}
	return nil, OutputDescribeRuleSet{RuleSet: input.RuleSet, Rules: rules}, nil
}
