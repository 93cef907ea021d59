// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"slices"

	"github.com/hemebench/hemebench-mcp/internal/catalog"
	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

// Rule sets a case report runs, by the part of the case they read.
const (
	CBCRuleSet         = "cbc"
	AnemiaRuleSet      = "anemia-kinetics"
	CoagulationRuleSet = "coagulation"
	FlowRuleSet        = "flow"
)

// Finding is the outcome of one rule set applied to part of a case.
type Finding struct {
	RuleSet         string   `json:"rule_set"`
	Interpretations []string `json:"interpretations"`
	Summary         string   `json:"summary"`
}

type CaseReport struct {
	Case     catalog.Case `json:"case"`
	Findings []Finding    `json:"findings"`
}

// InterpretCase runs a worked case through every rule set that applies to
// the data it carries, chosen by ApplicableRuleSets. The CBC feeds cbc and
// anemia-kinetics; the coagulation panel feeds coagulation and borrows the
// CBC platelet count when it has none of its own.
func (e *Engine) InterpretCase(caseID string) (CaseReport, error) {
	cs, ok := e.catalog.Case(caseID)
	if !ok {
		return CaseReport{}, fmt.Errorf("%w: %q", ErrUnknownCase, caseID)
	}
	report := CaseReport{Case: cs}

	cbc := interpret.Labs(cs.CBC)
	for _, id := range ApplicableRuleSets(cbc) {
		if id == CoagulationRuleSet {
			continue
		}
		f, err := e.labsFinding(id, cbc)
		if err != nil {
			return CaseReport{}, fmt.Errorf("case %q: %w", caseID, err)
		}
		report.Findings = append(report.Findings, f)
	}

	if len(cs.Coagulation) > 0 {
		coag := make(interpret.Labs, len(cs.Coagulation)+1)
		for k, v := range cs.Coagulation {
			coag[k] = v
		}
		if _, ok := coag["platelets"]; !ok {
			if plt, ok := cbc.Optional("platelets"); ok {
				coag["platelets"] = plt
			}
		}
		if slices.Contains(ApplicableRuleSets(coag), CoagulationRuleSet) {
			f, err := e.labsFinding(CoagulationRuleSet, coag)
			if err != nil {
				return CaseReport{}, fmt.Errorf("case %q: %w", caseID, err)
			}
			report.Findings = append(report.Findings, f)
		}
	}

	if len(cs.Flow) > 0 {
		f, err := e.markersFinding(cs.PositiveMarkers())
		if err != nil {
			return CaseReport{}, fmt.Errorf("case %q: %w", caseID, err)
		}
		report.Findings = append(report.Findings, f)
	}

	e.log.Debug().Str("case", caseID).Int("findings", len(report.Findings)).Msg("interpreted case")
	return report, nil
}

func (e *Engine) labsFinding(ruleSetID string, labs interpret.Labs) (Finding, error) {
	out, err := e.EvaluateLabs(ruleSetID, labs)
	if err != nil {
		return Finding{}, err
	}
	return Finding{
		RuleSet:         ruleSetID,
		Interpretations: out,
		Summary:         e.Summarize(ruleSetID, out, labs),
	}, nil
}

func (e *Engine) markersFinding(markers interpret.Markers) (Finding, error) {
	out, err := e.EvaluateMarkers(FlowRuleSet, markers)
	if err != nil {
		return Finding{}, err
	}
	return Finding{
		RuleSet:         FlowRuleSet,
		Interpretations: out,
		Summary:         e.Summarize(FlowRuleSet, out, markers),
	}, nil
}

// ApplicableRuleSets picks the labs rule sets whose required observations
// labs carries: cbc always, anemia-kinetics once MCV and reticulocytes are
// reported and coagulation once both PT and PTT are.
func ApplicableRuleSets(labs interpret.Labs) []string {
	ids := []string{CBCRuleSet}
	_, mcv := labs.Optional("mcv")
	_, retic := labs.Optional("reticulocytes")
	if mcv && retic {
		ids = append(ids, AnemiaRuleSet)
	}
	_, pt := labs.Optional("pt")
	_, ptt := labs.Optional("ptt")
	if pt && ptt {
		ids = append(ids, CoagulationRuleSet)
	}
	return ids
}

// InterpretPanel evaluates an ad hoc panel. Labs go through ruleSetIDs, or
// through ApplicableRuleSets when none are given; markers go through flow.
// Either part may be empty.
func (e *Engine) InterpretPanel(labs interpret.Labs, markers interpret.Markers, ruleSetIDs ...string) ([]Finding, error) {
	findings := []Finding{}
	if len(labs) > 0 {
		if len(ruleSetIDs) == 0 {
			ruleSetIDs = ApplicableRuleSets(labs)
		}
		for _, id := range ruleSetIDs {
			f, err := e.labsFinding(id, labs)
			if err != nil {
				return nil, err
			}
			findings = append(findings, f)
		}
	}
	if markers.Len() > 0 {
		f, err := e.markersFinding(markers)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}
