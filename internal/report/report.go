// Package report merges the rule verdict, the judge verdict, and the
// transcript into a single cited memo for human review. Assembly and
// rendering are pure: identical inputs always produce byte-identical
// output.
package report

import (
	"fmt"
	"sort"
	"strings"

	"dossier/internal/judge"
	"dossier/internal/rules"
	"dossier/internal/transcript"
)

// Assessor identifies which analysis cited a piece of evidence.
type Assessor string

const (
	AssessorRule  Assessor = "rule"
	AssessorJudge Assessor = "judge"
)

// EvidenceRow is one entry in the memo's cited-evidence table.
type EvidenceRow struct {
	TurnIndex int      `json:"turn_index"`
	Quote     string   `json:"quote"`
	Feature   string   `json:"feature,omitempty"`
	CitedBy   Assessor `json:"cited_by"`
}

// Memo is the final merged artifact.
type Memo struct {
	Summary         string        `json:"summary"`
	RuleFlag        bool          `json:"rule_flag"`
	RuleRationale   string        `json:"rule_rationale"`
	JudgeScore      judge.Score   `json:"judge_score"`
	JudgeRationale  string        `json:"judge_rationale"`
	JudgeValidJSON  bool          `json:"judge_valid_json"`
	Evidence        []EvidenceRow `json:"evidence"`
	Counterargument []string      `json:"counterargument_notes"`
}

// quoteTableChars truncates judge-cited turn content in the evidence table.
const quoteTableChars = 90

// counterargumentNotes is the fixed set of caveats every memo carries.
var counterargumentNotes = []string{
	"Pattern detection is substring-based; matched phrases may appear in a neutral or purely procedural register that a human reader would not experience as relational.",
	"The conversation follows a scripted scenario tree; the user's turns were authored to elicit these behaviors, and a single scripted conversation has no statistical validity.",
	"Several detected phrases (offers to help, invitations to follow up) are also standard customer-support language.",
	"This memo does not determine legal compliance; it assembles reviewable evidence of behavioral patterns only.",
}

// Assemble merges the two assessments and the ledger into a memo. It must
// render even when the judge output is degraded (valid_json=false): the
// degradation is surfaced in the summary rather than hidden.
func Assemble(rule rules.RuleOutput, verdict judge.Output, ledger *transcript.Ledger) Memo {
	records := ledger.Records()

	rows := make([]EvidenceRow, 0, len(rule.EvidenceSnippets)+len(verdict.CitedTurns))
	for _, s := range rule.EvidenceSnippets {
		rows = append(rows, EvidenceRow{
			TurnIndex: s.TurnIndex,
			Quote:     s.Quote,
			Feature:   s.Feature,
			CitedBy:   AssessorRule,
		})
	}
	for _, t := range verdict.CitedTurns {
		if t < 0 || t >= len(records) {
			continue
		}
		rows = append(rows, EvidenceRow{
			TurnIndex: t,
			Quote:     excerpt(records[t].Content),
			CitedBy:   AssessorJudge,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TurnIndex < rows[j].TurnIndex
	})

	return Memo{
		Summary:         summarize(rule, verdict, len(records)),
		RuleFlag:        rule.Flag,
		RuleRationale:   rule.Rationale,
		JudgeScore:      verdict.Score,
		JudgeRationale:  verdict.Rationale,
		JudgeValidJSON:  verdict.ValidJSON,
		Evidence:        rows,
		Counterargument: counterargumentNotes,
	}
}

func summarize(rule rules.RuleOutput, verdict judge.Output, turns int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Assessment of a %d-turn scripted conversation. ", turns)
	if rule.Flag {
		sb.WriteString("The deterministic rule flagged the transcript: every defined evidentiary element was independently detected. ")
	} else {
		sb.WriteString("The deterministic rule did not flag the transcript. ")
	}
	fmt.Fprintf(&sb, "The independent judge model scored it %q.", verdict.Score)
	if !verdict.ValidJSON {
		sb.WriteString(" Caution: the judge response could not be parsed as valid JSON; the judge score shown is the degraded fallback, not a model verdict.")
	}
	return sb.String()
}

// excerpt bounds a judge-cited turn's content for the table.
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) > quoteTableChars {
		runes = runes[:quoteTableChars]
	}
	return strings.TrimSpace(string(runes))
}

// Render produces the memo as structured text for on-disk persistence.
func (m Memo) Render() string {
	var sb strings.Builder

	sb.WriteString("# Evidentiary Assessment Memo\n\n")
	sb.WriteString("## Summary\n\n")
	sb.WriteString(m.Summary)
	sb.WriteString("\n\n")

	sb.WriteString("## Assessments\n\n")
	fmt.Fprintf(&sb, "- Rule-based flag: %t\n", m.RuleFlag)
	fmt.Fprintf(&sb, "- Rule rationale: %s\n", m.RuleRationale)
	fmt.Fprintf(&sb, "- Judge score: %s\n", m.JudgeScore)
	fmt.Fprintf(&sb, "- Judge rationale: %s\n", m.JudgeRationale)
	fmt.Fprintf(&sb, "- Judge output valid JSON: %t\n", m.JudgeValidJSON)
	sb.WriteString("\n")

	sb.WriteString("## Cited Evidence\n\n")
	if len(m.Evidence) == 0 {
		sb.WriteString("No evidence was cited by either assessor.\n")
	} else {
		sb.WriteString("| Turn | Cited By | Feature | Quote |\n")
		sb.WriteString("|------|----------|---------|-------|\n")
		for _, row := range m.Evidence {
			feature := row.Feature
			if feature == "" {
				feature = "-"
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n",
				row.TurnIndex, row.CitedBy, feature, strings.ReplaceAll(row.Quote, "|", "\\|"))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Counterargument Notes\n\n")
	for _, note := range m.Counterargument {
		fmt.Fprintf(&sb, "- %s\n", note)
	}

	return sb.String()
}
