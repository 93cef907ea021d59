// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

// analyteRule maps the names a report may use for a test to its observation key.
type analyteRule struct {
	aliases []string
	key     string
}

// analyteRules is matched against the normalized reading name. A name equal
// to an alias wins outright; otherwise aliases are matched word-wise in rule
// order and the first match wins, so spelled-out names that contain a shorter
// alias ("mean corpuscular hemoglobin") come first.
var analyteRules = []analyteRule{
	{aliases: []string{"mean corpuscular hemoglobin concentration", "mean cell hemoglobin concentration"}, key: "mchc"},
	{aliases: []string{"mean corpuscular hemoglobin", "mean cell hemoglobin"}, key: "mch"},
	{aliases: []string{"wbc", "white blood cells", "white blood cell count", "leukocytes"}, key: "wbc"},
	{aliases: []string{"rbc", "red blood cells", "red blood cell count", "erythrocytes"}, key: "rbc"},
	{aliases: []string{"hgb", "hb", "hemoglobin", "haemoglobin"}, key: "hgb"},
	{aliases: []string{"hct", "hematocrit", "haematocrit"}, key: "hct"},
	{aliases: []string{"mcv", "mean corpuscular volume", "mean cell volume"}, key: "mcv"},
	{aliases: []string{"mchc"}, key: "mchc"},
	{aliases: []string{"mch"}, key: "mch"},
	{aliases: []string{"rdw", "red cell distribution width"}, key: "rdw"},
	{aliases: []string{"plt", "platelets", "platelet", "platelet count"}, key: "platelets"},
	{aliases: []string{"neutrophils", "neutrophil", "neut", "segs"}, key: "neutrophils"},
	{aliases: []string{"lymphocytes", "lymphocyte", "lymph", "lymphs"}, key: "lymphocytes"},
	{aliases: []string{"monocytes", "monocyte", "mono", "monos"}, key: "monocytes"},
	{aliases: []string{"eosinophils", "eosinophil", "eos"}, key: "eosinophils"},
	{aliases: []string{"basophils", "basophil", "baso"}, key: "basophils"},
	{aliases: []string{"reticulocytes", "reticulocyte", "retic"}, key: "reticulocytes"},
	{aliases: []string{"ptt", "aptt", "partial thromboplastin time"}, key: "ptt"},
	{aliases: []string{"pt", "prothrombin time", "protime"}, key: "pt"},
	{aliases: []string{"inr"}, key: "inr"},
	{aliases: []string{"fibrinogen"}, key: "fibrinogen"},
	{aliases: []string{"d dimer", "ddimer"}, key: "d_dimer"},
}

// unmappedAnalytes are indices a report may carry that have no observation
// key but would otherwise match a shorter alias.
var unmappedAnalytes = []string{
	"mean platelet volume", "mpv", "platelet distribution width", "pdw",
	"immature platelet fraction", "ipf", "reticulocyte hemoglobin", "ret he", "chr",
	"nucleated rbc", "nrbc",
}

var (
	positiveValues = map[string]bool{"positive": true, "pos": true, "+": true, "bright": true, "dim": true, "partial": true}
	negativeValues = map[string]bool{"negative": true, "neg": true, "-": true}
)

// Panel is the observation content of an imported report.
type Panel struct {
	Labs interpret.Labs
	// Positive and Negative hold qualitative marker results in report order.
	Positive []string
	Negative []string
	// Unmapped lists reading names that matched neither an analyte nor a
	// qualitative marker result.
	Unmapped []string
}

// Markers returns the positive markers as an observation set.
func (p Panel) Markers() interpret.Markers {
	return interpret.NewMarkers(p.Positive...)
}

// AnalyteMapper maps readings to observation keys and marker results.
type AnalyteMapper struct{}

func NewAnalyteMapper() *AnalyteMapper {
	return &AnalyteMapper{}
}

// Map builds a panel from readings. An analyte reported twice is an error.
func (m *AnalyteMapper) Map(readings []Reading) (Panel, error) {
	panel := Panel{
		Labs:     interpret.Labs{},
		Positive: []string{},
		Negative: []string{},
		Unmapped: []string{},
	}
	seen := make(map[string]string, len(readings))

	for _, r := range readings {
		if marker, positive, ok := markerResult(r); ok {
			if positive {
				panel.Positive = append(panel.Positive, marker)
			} else {
				panel.Negative = append(panel.Negative, marker)
			}
			continue
		}

		key, ok := AnalyteKey(r.Name)
		if !ok {
			panel.Unmapped = append(panel.Unmapped, r.Name)
			continue
		}
		v, err := parseValue(r.Raw)
		if err != nil {
			return Panel{}, fmt.Errorf("%s: %q: %w", r.SourceID, r.Name, err)
		}
		if prev, dup := seen[key]; dup {
			return Panel{}, fmt.Errorf("%s: %q and %q both report %s", r.SourceID, prev, r.Name, key)
		}
		seen[key] = r.Name
		panel.Labs[key] = v
	}
	return panel, nil
}

// AnalyteKey returns the observation key a report name refers to.
func AnalyteKey(name string) (string, bool) {
	normalized := normalizeName(name)
	for _, rule := range analyteRules {
		for _, alias := range rule.aliases {
			if normalized == alias {
				return rule.key, true
			}
		}
	}

	padded := " " + normalized + " "
	for _, alias := range unmappedAnalytes {
		if strings.Contains(padded, " "+alias+" ") {
			return "", false
		}
	}
	for _, rule := range analyteRules {
		for _, alias := range rule.aliases {
			if strings.Contains(padded, " "+alias+" ") {
				return rule.key, true
			}
		}
	}
	return "", false
}

// markerResult recognizes "CD33: positive" and bare "CD33+" readings.
func markerResult(r Reading) (marker string, positive, ok bool) {
	name := strings.TrimSpace(r.Name)
	raw := strings.ToLower(strings.TrimSpace(r.Raw))

	if raw == "" {
		switch {
		case strings.HasSuffix(name, "+") && len(name) > 1:
			return strings.TrimSpace(strings.TrimSuffix(name, "+")), true, true
		case strings.HasSuffix(name, "-") && len(name) > 1:
			return strings.TrimSpace(strings.TrimSuffix(name, "-")), false, true
		}
		return "", false, false
	}

	word := strings.Fields(raw)[0]
	switch {
	case positiveValues[word]:
		return name, true, true
	case negativeValues[word]:
		return name, false, true
	}
	return "", false, false
}

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// parseValue reads the leading number of a raw value such as "9.5 g/dL",
// "9.5g/dL", "8,500 /uL" or "<0.5". Comparison prefixes and thousands
// separators are ignored. Only digit strings are accepted, so "NaN", "Inf"
// and out-of-range exponents are rejected.
func parseValue(raw string) (float64, error) {
	text := strings.TrimLeft(strings.TrimSpace(raw), "<>=~ ")
	if text == "" {
		return 0, fmt.Errorf("missing value")
	}
	num := leadingNumber(text)
	if num == "" {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	return v, nil
}

// leadingNumber returns the decimal number at the start of s with thousands
// separators removed: an optional sign, digits with at most one '.', and an
// optional exponent. It returns "" when s does not start with a number or
// a comma is not followed by a group of three digits.
func leadingNumber(s string) string {
	var b strings.Builder
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		b.WriteByte(s[i])
		i++
	}
	digits, dot := 0, false
scan:
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
			digits++
		case c == '.' && !dot:
			b.WriteByte(c)
			dot = true
		case c == ',':
			if digits == 0 || dot || !thousandsGroup(s[i+1:]) {
				return ""
			}
		default:
			break scan
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j {
			b.WriteString(s[i:k])
		}
	}
	return b.String()
}

// thousandsGroup reports whether s starts with exactly three digits.
func thousandsGroup(s string) bool {
	if len(s) < 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) == 3 || s[3] < '0' || s[3] > '9'
}
