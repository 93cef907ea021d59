// SPDX-License-Identifier: Apache-2.0

// Package tool exposes the interpreter as MCP tools.
package tool

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hemebench/hemebench-mcp/internal/engine"
	"github.com/hemebench/hemebench-mcp/internal/report"
	"github.com/hemebench/hemebench-mcp/internal/report/parsers"
)

// Handlers implements the tool handlers over a shared engine.
type Handlers struct {
	engine   *engine.Engine
	pipeline *report.Pipeline
}

func NewHandlers(e *engine.Engine) *Handlers {
	return &Handlers{engine: e, pipeline: parsers.NewDefaultPipeline()}
}

// Register adds every HemeBench tool to server.
func Register(server *mcp.Server, e *engine.Engine) {
	h := NewHandlers(e)
	mcp.AddTool(server, MetadataEvaluateLabs, h.EvaluateLabs)
	mcp.AddTool(server, MetadataEvaluateMarkers, h.EvaluateMarkers)
	mcp.AddTool(server, MetadataReferenceRange, h.ReferenceRange)
	mcp.AddTool(server, MetadataListRuleSets, h.ListRuleSets)
	mcp.AddTool(server, MetadataListMarkers, h.ListMarkers)
	mcp.AddTool(server, MetadataInterpretCase, h.InterpretCase)
	mcp.AddTool(server, MetadataEvaluateReport, h.EvaluateReport)
	mcp.AddTool(server, MetadataDescribeRuleSet, h.DescribeRuleSet)
	mcp.AddTool(server, MetadataListMutations, h.ListMutations)
	mcp.AddTool(server, MetadataGlossary, h.Glossary)
	mcp.AddTool(server, MetadataNormalSmear, h.NormalSmear)
}
