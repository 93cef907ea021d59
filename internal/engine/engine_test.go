// SPDX-License-Identifier: Apache-2.0

package engine_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemebench/hemebench-mcp/internal/catalog"
	"github.com/hemebench/hemebench-mcp/internal/engine"
	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

const (
	microcytic     = "Microcytic anemia (consider: iron deficiency, thalassemia, anemia of chronic disease)"
	macrocytic     = "Macrocytic anemia (consider: B12/folate deficiency, liver disease, reticulocytosis)"
	normocytic     = "Normocytic anemia (consider: acute blood loss, hemolysis, chronic disease, bone marrow failure)"
	thrombocytosis = "Thrombocytosis (consider: reactive vs. essential thrombocythemia, other MPNs)"
	elevatedRDW    = "Elevated RDW suggests mixed RBC populations or nutritional deficiency"
	preBALL        = "Pattern consistent with Pre-B ALL (CD34+, CD19+, CD10+)"
)

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return engine.New(cat, opts...)
}

// ---------------------------------------------------------------------------
// CBC
// ---------------------------------------------------------------------------

func TestEvaluateLabs_CBC(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name    string
		labs    interpret.Labs
		want    []string
		notWant []string
	}{
		{
			name:    "microcytic anemia",
			labs:    interpret.Labs{"hgb": 9.5, "mcv": 72},
			want:    []string{microcytic},
			notWant: []string{macrocytic, normocytic},
		},
		{
			name: "concurrent findings",
			labs: interpret.Labs{"hgb": 9.5, "mcv": 72, "platelets": 420, "rdw": 18},
			want: []string{microcytic, thrombocytosis, elevatedRDW},
		},
		{
			name: "normal panel",
			labs: interpret.Labs{"wbc": 7.5, "hgb": 15, "mcv": 90, "rdw": 13, "platelets": 250, "neutrophils": 60},
			want: []string{},
		},
		{
			name: "missing optional differential",
			labs: interpret.Labs{"wbc": 7.5},
			want: []string{},
		},
		{
			name: "leukocytosis without differential stays silent",
			labs: interpret.Labs{"wbc": 15},
			want: []string{},
		},
		{
			name: "neutrophilia wins over lymphocytosis",
			labs: interpret.Labs{"wbc": 18, "neutrophils": 85, "lymphocytes": 45},
			want: []string{"Neutrophilic leukocytosis (consider: infection, inflammation, stress, malignancy)"},
		},
		{
			name: "lymphocytosis when neutrophils normal",
			labs: interpret.Labs{"wbc": 18, "neutrophils": 50, "lymphocytes": 45, "eosinophils": 9},
			want: []string{"Lymphocytosis (consider: viral infection, CLL, pertussis)"},
		},
		{
			name: "eosinophilia last in the chain",
			labs: interpret.Labs{"wbc": 14, "neutrophils": 55, "lymphocytes": 30, "eosinophils": 9},
			want: []string{"Eosinophilia (consider: allergy, parasites, drug reaction, hypereosinophilic syndromes)"},
		},
		{
			name: "boundary values are normal",
			labs: interpret.Labs{"hgb": 13.5, "mcv": 80, "platelets": 400, "rdw": 14.5, "wbc": 11.0},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.EvaluateLabs("cbc", tt.labs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestEvaluateLabs_ConcurrentFindingsAreNotShortCircuited(t *testing.T) {
	e := newEngine(t)
	out, err := e.EvaluateLabs("cbc", interpret.Labs{"hgb": 9.5, "mcv": 72, "platelets": 420, "rdw": 18})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(out), 2)
	assert.Equal(t, microcytic, out[0])
}

func TestEvaluateLabs_Idempotent(t *testing.T) {
	e := newEngine(t)
	labs := interpret.Labs{"hgb": 9.5, "mcv": 72, "platelets": 420, "rdw": 18}

	first, err := e.EvaluateLabs("cbc", labs)
	require.NoError(t, err)
	second, err := e.EvaluateLabs("cbc", labs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluateLabs_SharedAcrossGoroutines(t *testing.T) {
	e := newEngine(t)
	labs := interpret.Labs{"hgb": 9.5, "mcv": 72, "platelets": 420, "rdw": 18}
	want, err := e.EvaluateLabs("cbc", labs)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.EvaluateLabs("cbc", labs)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

// ---------------------------------------------------------------------------
// Anemia kinetics and coagulation
// ---------------------------------------------------------------------------

func TestEvaluateLabs_AnemiaKinetics(t *testing.T) {
	e := newEngine(t)

	out, err := e.EvaluateLabs("anemia-kinetics", interpret.Labs{"hgb": 8, "mcv": 110, "reticulocytes": 0.2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "Macrocytic, hypoproliferative")

	out, err = e.EvaluateLabs("anemia-kinetics", interpret.Labs{"hgb": 15})
	require.NoError(t, err)
	assert.Empty(t, out, "no anemia, so MCV and reticulocytes are never read")
}

func TestEvaluateLabs_RequiredKeyMissing(t *testing.T) {
	e := newEngine(t)
	_, err := e.EvaluateLabs("anemia-kinetics", interpret.Labs{"hgb": 9, "mcv": 72})
	require.Error(t, err)
	assert.ErrorIs(t, err, interpret.ErrKeyNotFound)
	assert.Contains(t, err.Error(), "reticulocytes")
}

func TestEvaluateLabs_Coagulation(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name string
		labs interpret.Labs
		want []string
	}{
		{
			name: "isolated PT",
			labs: interpret.Labs{"pt": 16, "ptt": 30},
			want: []string{"Isolated PT prolongation (16.0 s): extrinsic pathway (VII) affected (consider: factor VII deficiency, early warfarin, early vitamin K deficiency, mild liver disease)"},
		},
		{
			name: "short PT matches no pattern",
			labs: interpret.Labs{"pt": 9, "ptt": 30},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.EvaluateLabs("coagulation", tt.labs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := e.EvaluateLabs("coagulation", interpret.Labs{"pt": 12})
	assert.ErrorIs(t, err, interpret.ErrKeyNotFound)
}

// ---------------------------------------------------------------------------
// Flow markers
// ---------------------------------------------------------------------------

func TestEvaluateMarkers_Superset(t *testing.T) {
	e := newEngine(t)
	out, err := e.EvaluateMarkers("flow", interpret.NewMarkers("CD34", "CD19", "CD10", "CD20"))
	require.NoError(t, err)
	assert.Equal(t, []string{preBALL}, out)
}

func TestEvaluateMarkers_MultiplePatterns(t *testing.T) {
	e := newEngine(t)
	out, err := e.EvaluateMarkers("flow", interpret.NewMarkers("CD34", "MPO", "CD13", "CD14", "CD64"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Pattern consistent with AML (blasts positive for CD34, MPO, CD13)",
		"Monocytic lineage differentiation",
	}, out)
}

// ---------------------------------------------------------------------------
// Lookup errors
// ---------------------------------------------------------------------------

func TestEvaluate_UnknownRuleSet(t *testing.T) {
	e := newEngine(t)

	_, err := e.EvaluateLabs("vitals", interpret.Labs{})
	assert.ErrorIs(t, err, engine.ErrUnknownRuleSet)

	_, err = e.EvaluateLabs("flow", interpret.Labs{})
	require.ErrorIs(t, err, engine.ErrUnknownRuleSet)
	assert.Contains(t, err.Error(), "markers rule set")

	_, err = e.EvaluateMarkers("cbc", interpret.NewMarkers("CD19"))
	assert.ErrorIs(t, err, engine.ErrUnknownRuleSet)
}

// ---------------------------------------------------------------------------
// Ranges, classification and summaries
// ---------------------------------------------------------------------------

func TestRangeForAndClassify(t *testing.T) {
	e := newEngine(t)

	iv, err := e.RangeFor("hgb")
	require.NoError(t, err)
	assert.Equal(t, 13.5, iv.Low)
	assert.Equal(t, 17.5, iv.High)

	level, err := e.Classify("platelets", 420)
	require.NoError(t, err)
	assert.Equal(t, interpret.Above, level)

	level, err = e.Classify("platelets", 150)
	require.NoError(t, err)
	assert.Equal(t, interpret.Within, level)

	_, err = e.Classify("ferritin", 10)
	assert.ErrorIs(t, err, interpret.ErrKeyNotFound)

	levels := e.ClassifyAll(interpret.Labs{"hgb": 9.5, "mcv": 90, "ferritin": 5})
	assert.Equal(t, map[string]interpret.Level{"hgb": interpret.Below, "mcv": interpret.Within}, levels)
}

func TestSummarize(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, "a | b", e.Summarize("cbc", []string{"a", "b"}, interpret.Labs{}))
	assert.Equal(t, "Normal CBC pattern - all values within reference ranges", e.Summarize("cbc", nil, interpret.Labs{}))
	assert.Equal(t, "Selected: CD20, CD19. Add more markers for pattern recognition.",
		e.Summarize("flow", []string{}, interpret.NewMarkers("CD20", "CD19")))
	assert.Equal(t, "No pattern detected", e.Summarize("unknown", nil, nil))
}

func TestRuleSets(t *testing.T) {
	e := newEngine(t)
	infos := e.RuleSets()
	require.Len(t, infos, 4)
	assert.Equal(t, "flow", infos[3].ID)
	assert.Equal(t, catalog.KindMarkers, infos[3].Kind)
}

func TestWithLogger_LogsEvaluations(t *testing.T) {
	var buf bytes.Buffer
	e := newEngine(t, engine.WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	_, err := e.EvaluateLabs("cbc", interpret.Labs{"hgb": 9.5, "mcv": 72})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"rule_set":"cbc"`)
	assert.Contains(t, buf.String(), `"matches":1`)
}

// ---------------------------------------------------------------------------
// Cases
// ---------------------------------------------------------------------------

func TestInterpretCase_IronDeficiency(t *testing.T) {
	e := newEngine(t)
	report, err := e.InterpretCase("case1")
	require.NoError(t, err)
	assert.Equal(t, "Iron deficiency anemia", report.Case.Diagnosis)

	require.Len(t, report.Findings, 2, "case1 has no coagulation or flow data")
	cbc := report.Findings[0]
	assert.Equal(t, engine.CBCRuleSet, cbc.RuleSet)
	assert.Equal(t, []string{microcytic, thrombocytosis, elevatedRDW}, cbc.Interpretations)
	assert.Equal(t, microcytic+" | "+thrombocytosis+" | "+elevatedRDW, cbc.Summary)

	kinetics := report.Findings[1]
	assert.Empty(t, kinetics.Interpretations)
	assert.Equal(t, "No MCV/reticulocyte anemia pattern", kinetics.Summary)
}

func TestInterpretCase_APL(t *testing.T) {
	e := newEngine(t)
	report, err := e.InterpretCase("case2")
	require.NoError(t, err)
	require.Len(t, report.Findings, 4)

	cbc := report.Findings[0].Interpretations
	assert.Contains(t, cbc, normocytic)
	assert.Contains(t, cbc, "Leukopenia (consider: viral infection, bone marrow failure, autoimmune, medications)")
	assert.Contains(t, cbc, "Thrombocytopenia (consider: ITP, TTP, DIC, bone marrow failure, sequestration)")

	coag := report.Findings[2]
	assert.Equal(t, engine.CoagulationRuleSet, coag.RuleSet)
	require.Len(t, coag.Interpretations, 2)
	assert.Contains(t, coag.Interpretations[0], "PT (18.0 s) and PTT (45.0 s) prolonged")
	assert.Equal(t, "Low fibrinogen (95 mg/dL), elevated D-dimer and thrombocytopenia support DIC", coag.Interpretations[1])

	flow := report.Findings[3]
	assert.Empty(t, flow.Interpretations)
	assert.Equal(t, "Selected: CD33, MPO. Add more markers for pattern recognition.", flow.Summary)
}

func TestInterpretCase_PolycythemiaSkipsKinetics(t *testing.T) {
	e := newEngine(t)
	report, err := e.InterpretCase("case3")
	require.NoError(t, err)
	require.Len(t, report.Findings, 1, "case3 reports no reticulocytes")
	assert.Equal(t, engine.CBCRuleSet, report.Findings[0].RuleSet)
}

// incompleteCaseCatalog carries a case with no reticulocyte count and a
// coagulation panel without PTT. Both pass schema validation.
const incompleteCaseCatalog = `version: "test"
ranges:
  - {key: hgb, low: 13.5, high: 17.5}
  - {key: mcv, low: 80, high: 100}
  - {key: reticulocytes, low: 0.5, high: 2.5}
  - {key: pt, low: 11, high: 13.5}
  - {key: ptt, low: 25, high: 35}
rule_sets:
  - id: cbc
    kind: labs
    optional_keys: [hgb, mcv]
    rules:
      - id: macrocytic-anemia
        text: "Macrocytic anemia"
        all:
          - {key: hgb, level: below}
          - {key: mcv, level: above}
  - id: anemia-kinetics
    kind: labs
    rules:
      - id: macrocytic-hypoproliferative
        text: "Macrocytic, hypoproliferative"
        all:
          - {key: hgb, level: below}
          - {key: mcv, level: above}
          - {key: reticulocytes, level: below}
  - id: coagulation
    kind: labs
    rules:
      - id: isolated-pt
        text: "Isolated PT prolongation"
        all:
          - {key: pt, level: above}
          - {key: ptt, level: within}
cases:
  - id: case-b12
    title: Megaloblastic anemia
    diagnosis: B12 deficiency
    cbc: {hgb: 8.9, mcv: 112}
    coagulation: {pt: 12}
`

func TestInterpretCase_AnemiaWithoutReticulocytes(t *testing.T) {
	cat, err := catalog.Load([]byte(incompleteCaseCatalog))
	require.NoError(t, err)

	report, err := engine.New(cat).InterpretCase("case-b12")
	require.NoError(t, err)
	require.Len(t, report.Findings, 1, "no kinetics without reticulocytes, no coagulation without PTT")
	assert.Equal(t, engine.CBCRuleSet, report.Findings[0].RuleSet)
	assert.Equal(t, []string{"Macrocytic anemia"}, report.Findings[0].Interpretations)
}

func TestInterpretCase_Unknown(t *testing.T) {
	e := newEngine(t)
	_, err := e.InterpretCase("case99")
	assert.ErrorIs(t, err, engine.ErrUnknownCase)
}

// ---------------------------------------------------------------------------
// Ad hoc panels
// ---------------------------------------------------------------------------

func TestApplicableRuleSets(t *testing.T) {
	tests := []struct {
		name string
		labs interpret.Labs
		want []string
	}{
		{name: "cbc only", labs: interpret.Labs{"hgb": 9}, want: []string{"cbc"}},
		{name: "mcv and reticulocytes", labs: interpret.Labs{"hgb": 9, "mcv": 72, "reticulocytes": 0.2}, want: []string{"cbc", "anemia-kinetics"}},
		{name: "reticulocytes without mcv", labs: interpret.Labs{"hgb": 9, "reticulocytes": 0.2}, want: []string{"cbc"}},
		{name: "mcv without reticulocytes", labs: interpret.Labs{"hgb": 9, "mcv": 112}, want: []string{"cbc"}},
		{name: "pt without ptt", labs: interpret.Labs{"pt": 16}, want: []string{"cbc"}},
		{name: "pt and ptt", labs: interpret.Labs{"pt": 16, "ptt": 30}, want: []string{"cbc", "coagulation"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.ApplicableRuleSets(tt.labs))
		})
	}
}

func TestInterpretPanel(t *testing.T) {
	e := newEngine(t)

	findings, err := e.InterpretPanel(
		interpret.Labs{"hgb": 8, "mcv": 110, "reticulocytes": 0.2},
		interpret.NewMarkers("CD34", "CD19", "CD10"),
	)
	require.NoError(t, err)
	require.Len(t, findings, 3)
	assert.Equal(t, []string{macrocytic}, findings[0].Interpretations)
	assert.Equal(t, "anemia-kinetics", findings[1].RuleSet)
	assert.Contains(t, findings[1].Summary, "Macrocytic, hypoproliferative")
	assert.Equal(t, []string{preBALL}, findings[2].Interpretations)

	findings, err = e.InterpretPanel(interpret.Labs{"pt": 12}, interpret.NewMarkers(), "coagulation")
	require.ErrorIs(t, err, interpret.ErrKeyNotFound)
	assert.Nil(t, findings)

	findings, err = e.InterpretPanel(nil, interpret.NewMarkers())
	require.NoError(t, err)
	assert.Empty(t, findings)
}
