// SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"context"
	"strings"

	"github.com/hemebench/hemebench-mcp/internal/report"
)

// MarkdownParser parses markdown lab reports into Readings.
// Headings (lines starting with '#') set the section. Within a section it
// reads list items ("- Hemoglobin: 9.5 g/dL", "- CD33+") and table rows
// ("| Hemoglobin | 9.5 | g/dL |").
type MarkdownParser struct{}

// NewMarkdownParser creates a new MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) Name() string {
	return "markdown"
}

// CanHandle returns true for sources that use the "markdown" format hint,
// or whose content begins with a heading, list item or table row.
func (p *MarkdownParser) CanHandle(source report.Source) bool {
	if strings.EqualFold(source.Format, "markdown") || strings.EqualFold(source.Format, "md") {
		return true
	}
	content := strings.TrimSpace(string(source.Content))
	return strings.HasPrefix(content, "#") || strings.HasPrefix(content, "- ") ||
		strings.HasPrefix(content, "|") || strings.Contains(content, "\n#")
}

func (p *MarkdownParser) Parse(_ context.Context, source report.Source) ([]report.Reading, error) {
	var readings []report.Reading
	var section string

	for _, line := range strings.Split(string(source.Content), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			section = strings.TrimSpace(strings.TrimLeft(line, "#"))
		case strings.HasPrefix(line, "|"):
			if r, ok := tableRow(line); ok {
				r.SourceID, r.Section = source.ID, section
				readings = append(readings, r)
			}
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			item := strings.TrimSpace(line[2:])
			name, raw, _ := strings.Cut(item, ":")
			if strings.TrimSpace(name) == "" {
				continue
			}
			readings = append(readings, report.Reading{
				Name:     strings.TrimSpace(name),
				Raw:      strings.TrimSpace(raw),
				SourceID: source.ID,
				Section:  section,
			})
		}
	}
	return readings, nil
}

// tableRow reads the first two cells of a table row. Header separators
// and the header row itself ("Test | Result") are skipped.
func tableRow(line string) (report.Reading, bool) {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	if len(cells) < 2 {
		return report.Reading{}, false
	}
	name := strings.TrimSpace(cells[0])
	raw := strings.TrimSpace(cells[1])
	if name == "" || strings.Trim(name, "-: ") == "" {
		return report.Reading{}, false
	}
	if len(cells) > 2 {
		if unit := strings.TrimSpace(cells[2]); unit != "" {
			raw += " " + unit
		}
	}
	switch strings.ToLower(name) {
	case "test", "analyte", "marker", "name":
		return report.Reading{}, false
	}
	return report.Reading{Name: name, Raw: raw}, true
}

// NewDefaultPipeline returns a pipeline with the markdown parser tried
// before the YAML parser.
func NewDefaultPipeline() *report.Pipeline {
	return report.NewPipeline(NewMarkdownParser(), NewYAMLParser())
}
