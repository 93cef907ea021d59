// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// ---------------------------------------------------------------------------
// parseObservations
// ---------------------------------------------------------------------------

func TestParseObservations(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		want        interpret.Labs
		errContains string
	}{
		{
			name: "key value pairs",
			args: []string{"hgb=9.5", "mcv=72", " platelets = 420 "},
			want: interpret.Labs{"hgb": 9.5, "mcv": 72, "platelets": 420},
		},
		{name: "missing separator", args: []string{"hgb"}, errContains: "want key=value"},
		{name: "empty key", args: []string{"=9"}, errContains: "want key=value"},
		{name: "non numeric value", args: []string{"hgb=low"}, errContains: `invalid value for "hgb"`},
		{name: "duplicate key", args: []string{"hgb=9", "hgb=10"}, errContains: "duplicate observation"},
		{name: "NaN value", args: []string{"hgb=NaN"}, errContains: "not a finite number"},
		{name: "infinite value", args: []string{"platelets=+Inf"}, errContains: "not a finite number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseObservations(tt.args)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// commands
// ---------------------------------------------------------------------------

func TestEvaluateCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantOut     []string
		errContains string
	}{
		{
			name:    "cbc by default",
			args:    []string{"evaluate", "hgb=9.5", "mcv=72", "platelets=420"},
			wantOut: []string{"- Microcytic anemia", "- Thrombocytosis"},
		},
		{
			name:    "normal panel",
			args:    []string{"evaluate", "wbc=7.5"},
			wantOut: []string{"Normal CBC pattern - all values within reference ranges"},
		},
		{
			name:    "coagulation set",
			args:    []string{"evaluate", "--set", "coagulation", "pt=16", "ptt=30"},
			wantOut: []string{"Isolated PT prolongation (16.0 s)"},
		},
		{
			name:    "marker panel",
			args:    []string{"evaluate", "--markers", "CD34,CD19,CD10"},
			wantOut: []string{"Pre-B ALL"},
		},
		{
			name:    "empty marker panel",
			args:    []string{"evaluate", "--markers="},
			wantOut: []string{"Select markers to build a panel and see interpretation"},
		},
		{
			name:        "no observations",
			args:        []string{"evaluate"},
			errContains: "at least one key=value observation is required",
		},
		{
			name:        "markers with labs",
			args:        []string{"evaluate", "--markers", "CD34", "hgb=9"},
			errContains: "cannot be combined",
		},
		{
			name:        "required key missing",
			args:        []string{"evaluate", "--set", "anemia-kinetics", "hgb=9", "mcv=72"},
			errContains: "reticulocytes",
		},
		{
			name:        "unknown rule set",
			args:        []string{"evaluate", "--set", "chemistry", "hgb=9"},
			errContains: "unknown rule set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestRangesCommand(t *testing.T) {
	out, err := run(t, "ranges")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "mcv")
	assert.Contains(t, out, "fibrinogen")
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "embedded catalog: OK")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: \"1\"\nranges: oops\n"), 0o600))
	_, err = run(t, "validate", bad)
	assert.ErrorIs(t, err, interpret.ErrConfiguration)
}

func TestCaseCommand(t *testing.T) {
	out, err := run(t, "case", "case2")
	require.NoError(t, err)
	assert.Contains(t, out, "case2: Acute Promyelocytic Leukemia (APL)")
	assert.Contains(t, out, "[coagulation]")
	assert.Contains(t, out, "Diagnosis: Acute Promyelocytic Leukemia")
	assert.Contains(t, out, "Mechanism: t(15;17) PML-RARA")
	assert.Contains(t, out, "- Start ATRA immediately (even before confirmation)")

	_, err = run(t, "case", "case99")
	assert.ErrorContains(t, err, "unknown case")
}

func TestGlossaryCommand(t *testing.T) {
	out, err := run(t, "glossary", "auer")
	require.NoError(t, err)
	assert.Contains(t, out, "Auer Rod [morphology]")

	out, err = run(t, "glossary", "--category", "clinical")
	require.NoError(t, err)
	assert.Contains(t, out, "DIC [clinical]")
	assert.Contains(t, out, "TTP [clinical]")
	assert.NotContains(t, out, "MCV")

	out, err = run(t, "glossary", "ferritin")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching terms")
}

func TestMutationsCommand(t *testing.T) {
	out, err := run(t, "mutations", "--category", "MPN")
	require.NoError(t, err)
	assert.Contains(t, out, "GENE")
	assert.Contains(t, out, "JAK2 V617F")
	assert.Contains(t, out, "CALR")
	assert.NotContains(t, out, "FLT3-ITD")
}

func TestInvalidConfigFailsBeforeRunning(t *testing.T) {
	t.Setenv("HEMEBENCH_LOG_FORMAT", "xml")
	_, err := run(t, "ranges")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestEvaluateCommand_File(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "report.md")
	require.NoError(t, os.WriteFile(md, []byte("# CBC\n- Hemoglobin: 9.5\n- MCV: 72\n- Ferritin: 4\n\n# Flow\n- CD19+\n- CD5+\n- CD23+\n"), 0o600))

	out, err := run(t, "evaluate", "--file", md)
	require.NoError(t, err)
	assert.Contains(t, out, "[cbc] Microcytic anemia")
	assert.Contains(t, out, "[flow] Pattern consistent with CLL")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("patient: anonymous\n"), 0o600))
	_, err = run(t, "evaluate", "--file", empty)
	assert.ErrorContains(t, err, "no recognized observations")

	_, err = run(t, "evaluate", "--file", md, "hgb=9")
	assert.ErrorContains(t, err, "cannot be combined")
}
