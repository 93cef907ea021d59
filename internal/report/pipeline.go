// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"fmt"
)

type Pipeline struct {
	parsers []Parser
	mapper  *AnalyteMapper
}

// NewPipeline creates a new Pipeline with the provided parsers.
// The AnalyteMapper is created internally.
func NewPipeline(parsers ...Parser) *Pipeline {
	return &Pipeline{
		parsers: parsers,
		mapper:  NewAnalyteMapper(),
	}
}

// Result is the output of a successful pipeline run.
type Result struct {
	Panel
	ParserUsed   string
	ReadingCount int
}

func (p *Pipeline) Run(ctx context.Context, source Source) (Result, error) {
	parser, err := p.selectParser(source)
	if err != nil {
		return Result{}, err
	}

	readings, err := parser.Parse(ctx, source)
	if err != nil {
		return Result{}, fmt.Errorf("parser %q failed: %w", parser.Name(), err)
	}

	panel, err := p.mapper.Map(readings)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Panel:        panel,
		ParserUsed:   parser.Name(),
		ReadingCount: len(readings),
	}, nil
}

// selectParser returns the first registered parser that can handle the given source.
func (p *Pipeline) selectParser(source Source) (Parser, error) {
	for _, parser := range p.parsers {
		if parser.CanHandle(source) {
			return parser, nil
		}
	}
	return nil, fmt.Errorf("unsupported report format: no parser found for source %q (format hint: %q)", source.ID, source.Format)
}

// RegisteredParsers returns the names of all currently registered parsers.
func (p *Pipeline) RegisteredParsers() []string {
	names := make([]string, len(p.parsers))
	for i, parser := range p.parsers {
		names[i] = parser.Name()
	}
	return names
}
