package rules

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dossier/internal/features"
)

func featureMapOf(present map[string]bool) map[string]features.FeatureResult {
	m := make(map[string]features.FeatureResult, 5)
	for i, name := range features.Names() {
		fr := features.FeatureResult{Evidence: []features.Evidence{}}
		if present[name] {
			fr.Present = true
			fr.Evidence = []features.Evidence{{TurnIndex: i, Quote: "quote for " + name}}
		}
		m[name] = fr
	}
	return m
}

// The flag is the conjunction of every feature: all 32 combinations.
func TestEvaluateIsStrictConjunction(t *testing.T) {
	names := features.Names()
	for mask := 0; mask < 1<<len(names); mask++ {
		present := map[string]bool{}
		for i, name := range names {
			present[name] = mask&(1<<i) != 0
		}
		out := Evaluate(featureMapOf(present))

		wantFlag := mask == 1<<len(names)-1
		if out.Flag != wantFlag {
			t.Errorf("mask %05b: flag = %v, want %v", mask, out.Flag, wantFlag)
		}
		if out.RuleVersion != RuleVersion {
			t.Errorf("mask %05b: rule_version = %q", mask, out.RuleVersion)
		}
	}
}

func TestEvaluateRationaleNamesMissingFeatures(t *testing.T) {
	present := map[string]bool{}
	for _, name := range features.Names() {
		present[name] = true
	}
	present[features.FeatureRelational] = false
	present[features.FeatureInvitation] = false

	out := Evaluate(featureMapOf(present))
	if out.Flag {
		t.Fatal("flag raised with missing features")
	}
	for _, want := range []string{features.FeatureRelational, features.FeatureInvitation} {
		if !strings.Contains(out.Rationale, want) {
			t.Errorf("rationale does not name missing feature %q: %s", want, out.Rationale)
		}
	}
	if strings.Contains(out.Rationale, features.FeatureEmotion) {
		t.Errorf("rationale names a present feature as missing: %s", out.Rationale)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	all := map[string]bool{}
	for _, name := range features.Names() {
		all[name] = true
	}
	input := featureMapOf(all)

	first := Evaluate(input)
	second := Evaluate(input)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("outputs differ between identical runs:\n%s", diff)
	}

	// Serialized artifacts must also be byte-identical.
	a, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("serialized outputs differ")
	}
}

func TestEvaluateDoesNotAliasInput(t *testing.T) {
	all := map[string]bool{}
	for _, name := range features.Names() {
		all[name] = true
	}
	input := featureMapOf(all)
	out := Evaluate(input)

	input[features.FeatureEmotion].Evidence[0] = features.Evidence{TurnIndex: 99, Quote: "mutated"}
	if out.RuleInputs[features.FeatureEmotion].Evidence[0].Quote == "mutated" {
		t.Error("rule_inputs aliases the caller's evidence slice")
	}
}

func TestSnippetsOrderedAndDeduplicated(t *testing.T) {
	m := map[string]features.FeatureResult{
		features.FeatureEmotion: {Present: true, Evidence: []features.Evidence{
			{TurnIndex: 7, Quote: "late quote"},
			{TurnIndex: 1, Quote: "shared quote"},
		}},
		features.FeatureGuidance: {Present: true, Evidence: []features.Evidence{
			{TurnIndex: 1, Quote: "shared quote"},
			{TurnIndex: 3, Quote: "middle quote"},
		}},
		features.FeatureRelational: {Evidence: []features.Evidence{}},
		features.FeatureInvitation: {Evidence: []features.Evidence{}},
		features.FeatureEngagement: {Evidence: []features.Evidence{}},
	}
	out := Evaluate(m)

	if len(out.EvidenceSnippets) != 3 {
		t.Fatalf("got %d snippets, want 3 after dedup: %+v", len(out.EvidenceSnippets), out.EvidenceSnippets)
	}
	for i := 1; i < len(out.EvidenceSnippets); i++ {
		if out.EvidenceSnippets[i-1].TurnIndex > out.EvidenceSnippets[i].TurnIndex {
			t.Errorf("snippets not ordered by turn: %+v", out.EvidenceSnippets)
		}
	}
	// The shared quote keeps the first feature that cited it.
	if out.EvidenceSnippets[0].Feature != features.FeatureEmotion {
		t.Errorf("dedup kept feature %q, want %q", out.EvidenceSnippets[0].Feature, features.FeatureEmotion)
	}
}

func TestAbsentFeatureEvidenceIgnored(t *testing.T) {
	// Evidence attached to a feature marked absent must not leak into the
	// snippet list.
	m := featureMapOf(map[string]bool{})
	m[features.FeatureEmotion] = features.FeatureResult{
		Present:  false,
		Evidence: []features.Evidence{{TurnIndex: 0, Quote: "stray"}},
	}
	out := Evaluate(m)
	if len(out.EvidenceSnippets) != 0 {
		t.Errorf("snippets = %+v, want none", out.EvidenceSnippets)
	}
}
