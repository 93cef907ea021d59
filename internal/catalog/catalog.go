// SPDX-License-Identifier: Apache-2.0

// Package catalog loads the static HemeBench content: reference ranges, rule
// sets, the flow marker list, the molecular and glossary references, the
// normal smear atlas and worked cases.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

//go:embed hemebench.yaml
var defaultCatalog []byte

// Kind is the observation type a rule set evaluates.
type Kind string

const (
	KindLabs    Kind = "labs"
	KindMarkers Kind = "markers"
)

// RangeEntry is a reference range together with its display metadata.
type RangeEntry struct {
	Key   string  `yaml:"key" json:"key"`
	Label string  `yaml:"label" json:"label,omitempty"`
	Unit  string  `yaml:"unit" json:"unit,omitempty"`
	Low   float64 `yaml:"low" json:"low"`
	High  float64 `yaml:"high" json:"high"`
}

type conditionSpec struct {
	Key      string `yaml:"key"`
	Level    string `yaml:"level"`
	Negate   bool   `yaml:"negate"`
	Optional bool   `yaml:"optional"`
}

type ruleSpec struct {
	ID              string          `yaml:"id"`
	Text            string          `yaml:"text"`
	Mechanism       string          `yaml:"mechanism"`
	ClinicalContext string          `yaml:"clinical_context"`
	Causes          []string        `yaml:"causes"`
	All             []conditionSpec `yaml:"all"`
	Markers         []string        `yaml:"markers"`
}

type ruleSetSpec struct {
	ID           string     `yaml:"id"`
	Title        string     `yaml:"title"`
	Kind         Kind       `yaml:"kind"`
	Empty        string     `yaml:"empty"`
	OptionalKeys []string   `yaml:"optional_keys"`
	Rules        []ruleSpec `yaml:"rules"`
}

// Marker is a flow cytometry marker reference entry.
type Marker struct {
	CD           string   `yaml:"cd" json:"cd"`
	Name         string   `yaml:"name" json:"name"`
	Lineage      []string `yaml:"lineage" json:"lineage"`
	Significance string   `yaml:"significance" json:"significance,omitempty"`
}

// FlowResult is one marker of a case's immunophenotype.
type FlowResult struct {
	Marker    string `yaml:"marker" json:"marker"`
	Positive  bool   `yaml:"positive" json:"positive"`
	Intensity string `yaml:"intensity" json:"intensity,omitempty"`
}

// Case is a worked diagnostic case.
type Case struct {
	ID           string             `yaml:"id" json:"id"`
	Title        string             `yaml:"title" json:"title"`
	Setting      string             `yaml:"setting" json:"setting,omitempty"`
	Age          int                `yaml:"age" json:"age,omitempty"`
	Sex          string             `yaml:"sex" json:"sex,omitempty"`
	Presentation string             `yaml:"presentation" json:"presentation,omitempty"`
	Level        string             `yaml:"level" json:"level,omitempty"`
	Diagnosis    string             `yaml:"diagnosis" json:"diagnosis"`
	CBC          map[string]float64 `yaml:"cbc" json:"cbc"`
	Coagulation  map[string]float64 `yaml:"coagulation" json:"coagulation,omitempty"`
	Flow         []FlowResult       `yaml:"flow" json:"flow,omitempty"`
	Smear        *Smear             `yaml:"smear" json:"smear,omitempty"`
	Molecular    []MolecularFinding `yaml:"molecular" json:"molecular,omitempty"`

	// Teaching notes revealed with the diagnosis.
	Mechanism        string   `yaml:"mechanism" json:"mechanism,omitempty"`
	KeyFeatures      []string `yaml:"key_features" json:"key_features,omitempty"`
	DifferentialDx   []string `yaml:"differential_dx" json:"differential_dx,omitempty"`
	ManagementPoints []string `yaml:"management_points" json:"management_points,omitempty"`
}

// PositiveMarkers returns the markers the case's flow study found positive.
func (c Case) PositiveMarkers() interpret.Markers {
	ids := make([]string, 0, len(c.Flow))
	for _, f := range c.Flow {
		if f.Positive {
			ids = append(ids, f.Marker)
		}
	}
	return interpret.NewMarkers(ids...)
}

type document struct {
	Version    string          `yaml:"version"`
	Ranges     []RangeEntry    `yaml:"ranges"`
	RuleSets   []ruleSetSpec   `yaml:"rule_sets"`
	Markers    []Marker        `yaml:"markers"`
	Mutations  []Mutation      `yaml:"mutations"`
	Glossary   []GlossaryEntry `yaml:"glossary"`
	SmearCells []SmearCell     `yaml:"smear_cells"`
	Cases      []Case          `yaml:"cases"`
}

// RuleSetInfo describes a compiled rule set.
type RuleSetInfo struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Kind  Kind   `json:"kind"`
	Rules int    `json:"rules"`
	// Empty is the message shown when no rule matches. It may reference
	// observation fields.
	Empty string `json:"empty,omitempty"`
}

// Catalog is the compiled, read-only content library.
type Catalog struct {
	Version string
	Ranges  *interpret.RangeTable

	entries    []RangeEntry
	infos      []RuleSetInfo
	details    map[string][]RuleDetail
	labSets    map[string]*interpret.RuleSet[interpret.Labs]
	markerSets map[string]*interpret.RuleSet[interpret.Markers]
	markers    []Marker
	mutations  []Mutation
	glossary   []GlossaryEntry
	smearCells []SmearCell
	cases      map[string]Case
	caseOrder  []string
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Load(defaultCatalog)
}

// LoadFile reads and loads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	return Load(data)
}

// Load validates data against the catalog schema, decodes it and compiles
// the rule sets. Any malformed content is reported as
// interpret.ErrConfiguration.
func Load(data []byte) (*Catalog, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal catalog: %w", interpret.ErrConfiguration, err)
	}
	return compile(doc)
}

// RangeEntries returns the reference ranges in catalog order.
func (c *Catalog) RangeEntries() []RangeEntry {
	return append([]RangeEntry(nil), c.entries...)
}

// RuleSets returns the rule sets in catalog order.
func (c *Catalog) RuleSets() []RuleSetInfo {
	return append([]RuleSetInfo(nil), c.infos...)
}

func (c *Catalog) RuleSet(id string) (RuleSetInfo, bool) {
	for _, info := range c.infos {
		if info.ID == id {
			return info, true
		}
	}
	return RuleSetInfo{}, false
}

func (c *Catalog) LabRuleSet(id string) (*interpret.RuleSet[interpret.Labs], bool) {
	rs, ok := c.labSets[id]
	return rs, ok
}

func (c *Catalog) MarkerRuleSet(id string) (*interpret.RuleSet[interpret.Markers], bool) {
	rs, ok := c.markerSets[id]
	return rs, ok
}

// MarkersByLineage filters the marker list. An empty lineage or "All"
// returns every marker.
func (c *Catalog) MarkersByLineage(lineage string) []Marker {
	if lineage == "" || strings.EqualFold(lineage, "all") {
		return append([]Marker(nil), c.markers...)
	}
	var out []Marker
	for _, m := range c.markers {
		for _, l := range m.Lineage {
			if strings.EqualFold(l, lineage) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func (c *Catalog) Case(id string) (Case, bool) {
	cs, ok := c.cases[id]
	return cs, ok
}

// Cases returns the worked cases in catalog order.
func (c *Catalog) Cases() []Case {
	out := make([]Case, 0, len(c.caseOrder))
	for _, id := range c.caseOrder {
		out = append(out, c.cases[id])
	}
	return out
}
