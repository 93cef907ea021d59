// SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/hemebench/hemebench-mcp/internal/report"
)

// YAMLParser parses YAML and JSON lab reports into Readings.
// Scalar values become readings named by their key; nested mappings become
// sections and sequences are read as bare marker lines ("CD33+").
type YAMLParser struct{}

func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) Name() string {
	return "yaml"
}

func (p *YAMLParser) CanHandle(source report.Source) bool {
	switch strings.ToLower(source.Format) {
	case "yaml", "yml", "json":
		return true
	}
	content := strings.TrimSpace(string(source.Content))
	// JSON object
	if strings.HasPrefix(content, "{") {
		return true
	}
	// Plain YAML: key: value at the start
	if len(content) > 0 && strings.Contains(strings.SplitN(content, "\n", 2)[0], ":") {
		// Avoid stealing from the markdown parser
		if !strings.HasPrefix(content, "#") && !strings.HasPrefix(content, "-") && !strings.HasPrefix(content, "|") {
			return true
		}
	}
	return false
}

func (p *YAMLParser) Parse(_ context.Context, source report.Source) ([]report.Reading, error) {
	var doc yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(source.Content, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML/JSON: %w", err)
	}

	var readings []report.Reading
	p.walk(doc, "", source.ID, &readings)
	return readings, nil
}

func (p *YAMLParser) walk(doc yaml.MapSlice, section, sourceID string, out *[]report.Reading) {
	for _, item := range doc {
		key := fmt.Sprint(item.Key)
		switch value := item.Value.(type) {
		case yaml.MapSlice:
			p.walk(value, joinSection(section, key), sourceID, out)
		case map[string]interface{}:
			p.walk(sortedSlice(value), joinSection(section, key), sourceID, out)
		case []interface{}:
			for _, elem := range value {
				*out = append(*out, report.Reading{
					Name:     strings.TrimSpace(fmt.Sprint(elem)),
					SourceID: sourceID,
					Section:  joinSection(section, key),
				})
			}
		case nil:
			*out = append(*out, report.Reading{Name: key, SourceID: sourceID, Section: section})
		default:
			*out = append(*out, report.Reading{
				Name:     key,
				Raw:      strings.TrimSpace(fmt.Sprint(value)),
				SourceID: sourceID,
				Section:  section,
			})
		}
	}
}

func sortedSlice(m map[string]interface{}) yaml.MapSlice {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(yaml.MapSlice, 0, len(keys))
	for _, k := range keys {
		out = append(out, yaml.MapItem{Key: k, Value: m[k]})
	}
	return out
}

func joinSection(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
