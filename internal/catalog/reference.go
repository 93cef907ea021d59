// SPDX-License-Identifier: Apache-2.0

package catalog

import "strings"

// Mutation is a molecular marker reference entry.
type Mutation struct {
	Gene     string   `yaml:"gene" json:"gene"`
	FullName string   `yaml:"full_name" json:"full_name,omitempty"`
	Diseases []string `yaml:"diseases" json:"diseases"`
	// Categories are the disease families the mutation is filed under
	// (AML, MPN, MDS, CML, ALL, Lymphoma).
	Categories   []string `yaml:"categories" json:"categories"`
	Pathway      string   `yaml:"pathway" json:"pathway,omitempty"`
	Prognosis    string   `yaml:"prognosis" json:"prognosis"`
	Significance string   `yaml:"significance" json:"significance,omitempty"`
	Treatment    string   `yaml:"treatment" json:"treatment,omitempty"`
}

// GlossaryEntry defines a hematology term.
type GlossaryEntry struct {
	Term       string   `yaml:"term" json:"term"`
	Category   string   `yaml:"category" json:"category"`
	Definition string   `yaml:"definition" json:"definition"`
	Synonyms   []string `yaml:"synonyms" json:"synonyms,omitempty"`
	Related    []string `yaml:"related" json:"related,omitempty"`
}

// SmearCell describes the normal appearance of a peripheral blood cell.
type SmearCell struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Size        string   `yaml:"size" json:"size,omitempty"`
	Nucleus     string   `yaml:"nucleus" json:"nucleus,omitempty"`
	Cytoplasm   string   `yaml:"cytoplasm" json:"cytoplasm,omitempty"`
	Frequency   string   `yaml:"frequency" json:"frequency,omitempty"`
	KeyFeatures []string `yaml:"key_features" json:"key_features,omitempty"`
}

// Smear is the peripheral smear review of a case.
type Smear struct {
	RBC         []string `yaml:"rbc" json:"rbc,omitempty"`
	WBC         []string `yaml:"wbc" json:"wbc,omitempty"`
	Platelets   []string `yaml:"platelets" json:"platelets,omitempty"`
	Impression  string   `yaml:"impression" json:"impression,omitempty"`
	KeyFindings []string `yaml:"key_findings" json:"key_findings,omitempty"`
}

// MolecularFinding is one mutation reported for a case.
type MolecularFinding struct {
	Gene     string `yaml:"gene" json:"gene"`
	Mutation string `yaml:"mutation" json:"mutation"`
	// VAF is the variant allele frequency in percent; zero when not reported.
	VAF            float64 `yaml:"vaf" json:"vaf,omitempty"`
	Classification string  `yaml:"classification" json:"classification,omitempty"`
	Significance   string  `yaml:"significance" json:"significance,omitempty"`
}

// RuleDetail is a compiled rule together with its teaching notes.
type RuleDetail struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Mechanism       string   `json:"mechanism,omitempty"`
	ClinicalContext string   `json:"clinical_context,omitempty"`
	Causes          []string `json:"causes,omitempty"`
}

// RuleDetails returns the rules of a rule set in evaluation order.
func (c *Catalog) RuleDetails(ruleSetID string) ([]RuleDetail, bool) {
	details, ok := c.details[ruleSetID]
	if !ok {
		return nil, false
	}
	return append([]RuleDetail(nil), details...), true
}

// MutationsByCategory filters the mutation table. An empty category or
// "All" returns every mutation. Otherwise a mutation matches when the
// category is one of its disease families or appears in one of its disease
// names, case-insensitively.
func (c *Catalog) MutationsByCategory(category string) []Mutation {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, "all") {
		return append([]Mutation(nil), c.mutations...)
	}
	needle := strings.ToLower(category)
	var out []Mutation
	for _, m := range c.mutations {
		if containsFold(m.Categories, category) || anyContains(m.Diseases, needle) {
			out = append(out, m)
		}
	}
	return out
}

// SearchGlossary returns the entries whose term, definition or synonyms
// contain query, case-insensitively, restricted to category unless it is
// empty or "all". An empty query matches every entry.
func (c *Catalog) SearchGlossary(query, category string) []GlossaryEntry {
	needle := strings.ToLower(strings.TrimSpace(query))
	category = strings.TrimSpace(category)
	allCategories := category == "" || strings.EqualFold(category, "all")

	var out []GlossaryEntry
	for _, e := range c.glossary {
		if !allCategories && !strings.EqualFold(e.Category, category) {
			continue
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(e.Term), needle) ||
			strings.Contains(strings.ToLower(e.Definition), needle) ||
			anyContains(e.Synonyms, needle) {
			out = append(out, e)
		}
	}
	return out
}

// SmearCells returns the normal smear reference in catalog order.
func (c *Catalog) SmearCells() []SmearCell {
	return append([]SmearCell(nil), c.smearCells...)
}

func (c *Catalog) SmearCell(id string) (SmearCell, bool) {
	for _, cell := range c.smearCells {
		if strings.EqualFold(cell.ID, id) {
			return cell, true
		}
	}
	return SmearCell{}, false
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// anyContains reports whether a lower-cased value contains needle, which
// must already be lower case.
func anyContains(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
