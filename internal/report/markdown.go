package report

import (
	"fmt"
	"strings"

	"sql-cleanser/internal/diff"
)

// maxListed caps the rows listed per table in the Markdown report; the
// structured documents always carry everything.
const maxListed = 20

func cell(c diff.Cell) string {
	if c.Absent {
		return "_absent_"
	}
	return "`" + strings.ReplaceAll(c.Raw, "|", `\|`) + "`"
}

func keyText(key []string) string {
	return "(" + strings.Join(key, ", ") + ")"
}

// DiffMarkdown renders diff_report.md.
func DiffMarkdown(doc *DiffDocument, duplicates *DuplicatesDocument, anomalies *AnomaliesDocument) string {
	var b strings.Builder
	b.WriteString("# Diff Report\n\n")
	fmt.Fprintf(&b, "- Source: %s (%s)\n", doc.Source.URL, doc.Source.Dialect)
	fmt.Fprintf(&b, "- Target: %s (%s)\n", doc.Target.URL, doc.Target.Dialect)
	if doc.Incomplete {
		b.WriteString("- Status: **INCOMPLETE** - the run was cancelled; skipped tables are listed under anomalies\n")
	} else {
		b.WriteString("- Status: complete\n")
	}

	totals := doc.Summary.Totals
	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "- Missing in target: %d\n", totals.Missing)
	fmt.Fprintf(&b, "- Extra in target: %d\n", totals.Extra)
	fmt.Fprintf(&b, "- Mismatches: %d\n", totals.Mismatches)
	fmt.Fprintf(&b, "- Matched: %d\n", totals.Matched)
	if len(doc.Summary.Tables) > 0 {
		b.WriteString("\n| table | missing | extra | mismatches | matched |\n|---|---|---|---|---|\n")
		for _, c := range doc.Summary.Tables {
			name := c.Table
			if c.Failed {
				name += " (failed)"
			}
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n", name, c.Missing, c.Extra, c.Mismatches, c.Matched)
		}
	}

	if len(doc.Order) > 0 {
		b.WriteString("\n## Dependency order\n\n")
		for i, name := range doc.Order {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
		for _, e := range doc.Removed {
			fmt.Fprintf(&b, "\n> cycle broken by dropping %s\n", e)
		}
	}

	for _, t := range doc.Tables {
		fmt.Fprintf(&b, "\n### Table: %s\n\n", t.Table)
		if t.Error != "" {
			fmt.Fprintf(&b, "- Status: %s - %s\n", t.Status, t.Error)
			continue
		}
		fmt.Fprintf(&b, "- Key: %s [%s]\n", keyText(t.Key.Columns), t.Key.Confidence)
		fmt.Fprintf(&b, "- Missing: %d\n", len(t.Missing))
		fmt.Fprintf(&b, "- Extra: %d\n", len(t.Extra))
		fmt.Fprintf(&b, "- Mismatches: %d\n", len(t.Mismatches))
		writeEntries(&b, "Missing in target", t.Missing)
		writeEntries(&b, "Extra in target", t.Extra)
		if len(t.Mismatches) > 0 {
			b.WriteString("\n| key | column | source | target |\n|---|---|---|---|\n")
			for i, m := range t.Mismatches {
				if i == maxListed {
					fmt.Fprintf(&b, "\n_%d more_\n", len(t.Mismatches)-maxListed)
					break
				}
				for _, c := range m.Columns {
					fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", keyText(m.Key), c.Column, cell(c.Source), cell(c.Target))
				}
			}
		}
	}

	if duplicates != nil && len(duplicates.Tables) > 0 {
		b.WriteString("\n## Duplicates\n\n")
		for _, r := range duplicates.Tables {
			fmt.Fprintf(&b, "- %s (%s): %d identical groups, %d key conflicts, %d fuzzy pairs",
				r.Table, r.Side, len(r.Identical), len(r.KeyConflicts), len(r.Fuzzy))
			if r.FuzzySkipped {
				b.WriteString(", fuzzy scan skipped")
			}
			b.WriteString("\n")
		}
	}

	if anomalies != nil && len(anomalies.Items) > 0 {
		b.WriteString("\n## Anomalies\n\n")
		for _, a := range anomalies.Items {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	return b.String()
}

func writeEntries(b *strings.Builder, title string, entries []diff.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n\n", title)
	for i, e := range entries {
		if i == maxListed {
			fmt.Fprintf(b, "- _%d more_\n", len(entries)-maxListed)
			return
		}
		fmt.Fprintf(b, "- %s at %s:%d\n", keyText(e.Key), e.File, e.Line)
	}
}

// PlanMarkdown renders migration_plan.md: the guide followed by the plan.
func PlanMarkdown(guide string, plan *Plan) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(guide))
	b.WriteString("\n\n## Plan\n\n")
	fmt.Fprintf(&b, "- Risk level: %s\n", plan.RiskLevel)
	fmt.Fprintf(&b, "- Estimated effort: %s\n", plan.EstimatedEffort)
	fmt.Fprintf(&b, "- Source: %s\n\n", plan.Origin)
	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if len(plan.Warnings) > 0 {
		b.WriteString("\n### Warnings\n\n")
		for _, w := range plan.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
