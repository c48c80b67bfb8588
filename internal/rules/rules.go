// Package rules computes the deterministic rule-based flag over extracted
// features. Evaluate is a pure function: no external calls, no randomness,
// bit-identical output for identical input across runs.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"dossier/internal/features"
)

// RuleVersion identifies the combinator semantics embedded in an output.
const RuleVersion = "v2_all_features_conjunction"

// Snippet is one cited excerpt contributing to the rule outcome.
type Snippet struct {
	TurnIndex int    `json:"turn_index"`
	Quote     string `json:"quote"`
	Feature   string `json:"feature"`
}

// RuleOutput is the deterministic rule verdict over one feature map.
type RuleOutput struct {
	Flag             bool                              `json:"flag"`
	Rationale        string                            `json:"rationale"`
	EvidenceSnippets []Snippet                         `json:"evidence_snippets"`
	RuleVersion      string                            `json:"rule_version"`
	RuleInputs       map[string]features.FeatureResult `json:"rule_inputs"`
}

// Evaluate applies the conjunction rule: the flag is raised only when every
// defined feature is independently present. The policy is deliberately
// conservative, minimizing false positives from any single overzealous
// pattern; whether any feature should be optional or weighted is an open
// policy question, not a defect.
func Evaluate(featureMap map[string]features.FeatureResult) RuleOutput {
	var present, missing []string
	for _, name := range features.Names() {
		if featureMap[name].Present {
			present = append(present, name)
		} else {
			missing = append(missing, name)
		}
	}
	flag := len(missing) == 0

	out := RuleOutput{
		Flag:             flag,
		RuleVersion:      RuleVersion,
		EvidenceSnippets: collectSnippets(featureMap),
		RuleInputs:       copyInputs(featureMap),
	}

	if flag {
		out.Rationale = "The transcript independently exhibits every defined evidentiary element: " +
			strings.Join(present, ", ") +
			". Taken together these could plausibly be offered as evidence of emotionally engaged, ongoing interaction."
	} else {
		out.Rationale = fmt.Sprintf(
			"The transcript does not satisfy the rule-based evidentiary pattern. Missing elements: %s.",
			strings.Join(missing, ", "))
	}
	return out
}

// collectSnippets gathers one snippet per evidence entry of each present
// feature, deduplicated by (turn_index, quote) and ordered by turn index,
// with feature order as the tiebreak.
func collectSnippets(featureMap map[string]features.FeatureResult) []Snippet {
	type key struct {
		turn  int
		quote string
	}
	seen := map[key]bool{}
	var snippets []Snippet
	for _, name := range features.Names() {
		fr := featureMap[name]
		if !fr.Present {
			continue
		}
		for _, ev := range fr.Evidence {
			k := key{ev.TurnIndex, ev.Quote}
			if seen[k] {
				continue
			}
			seen[k] = true
			snippets = append(snippets, Snippet{
				TurnIndex: ev.TurnIndex,
				Quote:     ev.Quote,
				Feature:   name,
			})
		}
	}
	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].TurnIndex < snippets[j].TurnIndex
	})
	return snippets
}

func copyInputs(featureMap map[string]features.FeatureResult) map[string]features.FeatureResult {
	out := make(map[string]features.FeatureResult, len(featureMap))
	for name, fr := range featureMap {
		evidence := make([]features.Evidence, len(fr.Evidence))
		copy(evidence, fr.Evidence)
		out[name] = features.FeatureResult{Present: fr.Present, Evidence: evidence}
	}
	return out
}
