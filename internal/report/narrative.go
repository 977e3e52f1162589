package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/diff"
	"sql-cleanser/internal/engine"
	"sql-cleanser/internal/inference"

	"go.uber.org/zap"
)

// Plan origins.
const (
	OriginOracle   = "oracle"
	OriginTemplate = "template"
)

// Risk levels.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Plan is the structured half of the migration narrative.
type Plan struct {
	Steps           []string `json:"steps" yaml:"steps"`
	RiskLevel       string   `json:"risk_level" yaml:"risk_level"`
	EstimatedEffort string   `json:"estimated_effort" yaml:"estimated_effort"`
	Warnings        []string `json:"warnings" yaml:"warnings"`
	Origin          string   `json:"origin" yaml:"origin"`
}

var errNoPlan = errors.New("response carries no usable JSON plan")

// Leading warnings of the template plan, by why the template was used.
const (
	warnNoOracle     = "Inference disabled - plan built from the diff alone, review before applying"
	warnUnusablePlan = "Automated analysis failed - manual review required"
)

// templatePlan stands in when no oracle is configured, or when the response
// arrived but its plan could not be used.
func templatePlan(reason string) *Plan {
	return &Plan{
		Steps: []string{
			"Review diff_report.md for detailed differences",
			"Identify missing records and add them to the target environment",
			"Review extra records in the target for removal or verification",
			"Resolve data mismatches by updating target records",
		},
		RiskLevel:       RiskMedium,
		EstimatedEffort: "4-8 hours",
		Warnings: []string{
			reason,
			"Verify all data transformations manually",
			"Test migration in staging environment first",
		},
		Origin: OriginTemplate,
	}
}

// unavailablePlan stands in when the oracle gave no answer at all.
func unavailablePlan() *Plan {
	return &Plan{
		Steps:           []string{"Manual review required - inference service unavailable"},
		RiskLevel:       RiskHigh,
		EstimatedEffort: "Manual assessment needed",
		Warnings:        []string{"Inference service failed - all analysis must be done manually"},
		Origin:          OriginTemplate,
	}
}

const unavailableGuide = "# Migration Guide\n\nInference service unavailable. Please review diff_report.md manually."

var emptyFence = regexp.MustCompile("```[A-Za-z]*\\s*```")

// ParseNarrative splits an oracle response into its JSON plan and the
// Markdown guide around it. The guide is returned even when the plan is
// unusable.
func ParseNarrative(text string) (*Plan, string, error) {
	raw, ok := inference.ExtractJSON(text)
	if !ok {
		return nil, strings.TrimSpace(text), errNoPlan
	}
	guide := strings.Replace(text, raw, "", 1)
	guide = strings.TrimSpace(emptyFence.ReplaceAllString(guide, ""))

	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, guide, fmt.Errorf("%w: %v", errNoPlan, err)
	}
	if len(plan.Steps) == 0 || plan.RiskLevel == "" {
		return nil, guide, errNoPlan
	}
	plan.RiskLevel = strings.ToUpper(strings.TrimSpace(plan.RiskLevel))
	if plan.Warnings == nil {
		plan.Warnings = []string{}
	}
	plan.Origin = OriginOracle
	return &plan, guide, nil
}

type sample struct {
	Table string   `json:"table"`
	Key   []string `json:"key"`
}

type mismatchSample struct {
	Table   string   `json:"table"`
	Key     []string `json:"key"`
	Columns []string `json:"columns"`
}

// narrativeSummary is the reduced payload sent to the oracle: totals,
// affected tables and the first three samples of each kind.
type narrativeSummary struct {
	SourceDialect    string           `json:"source_dialect"`
	TargetDialect    string           `json:"target_dialect"`
	TotalMissing     int              `json:"total_missing"`
	TotalExtra       int              `json:"total_extra"`
	TotalMismatches  int              `json:"total_mismatches"`
	TablesAffected   []string         `json:"tables_affected"`
	SampleMissing    []sample         `json:"sample_missing"`
	SampleExtra      []sample         `json:"sample_extra"`
	SampleMismatches []mismatchSample `json:"sample_mismatches"`
}

const sampleSize = 3

func summarize(run *engine.Run, summary diff.Summary) narrativeSummary {
	s := narrativeSummary{
		SourceDialect:    run.From,
		TargetDialect:    run.To,
		TotalMissing:     summary.Totals.Missing,
		TotalExtra:       summary.Totals.Extra,
		TotalMismatches:  summary.Totals.Mismatches,
		TablesAffected:   []string{},
		SampleMissing:    []sample{},
		SampleExtra:      []sample{},
		SampleMismatches: []mismatchSample{},
	}
	for _, c := range summary.Tables {
		if c.Missing+c.Extra+c.Mismatches > 0 || c.Failed {
			s.TablesAffected = append(s.TablesAffected, c.Table)
		}
	}
	for _, t := range run.Tables {
		if t.Diff == nil {
			continue
		}
		for _, e := range t.Diff.Missing {
			if len(s.SampleMissing) < sampleSize {
				s.SampleMissing = append(s.SampleMissing, sample{Table: t.Table, Key: e.Key})
			}
		}
		for _, e := range t.Diff.Extra {
			if len(s.SampleExtra) < sampleSize {
				s.SampleExtra = append(s.SampleExtra, sample{Table: t.Table, Key: e.Key})
			}
		}
		for _, m := range t.Diff.Mismatches {
			if len(s.SampleMismatches) >= sampleSize {
				break
			}
			ms := mismatchSample{Table: t.Table, Key: m.Key}
			for _, c := range m.Columns {
				ms.Columns = append(ms.Columns, c.Column)
			}
			s.SampleMismatches = append(s.SampleMismatches, ms)
		}
	}
	return s
}

// Narrator asks the oracle for a migration narrative and falls back to a
// template when it cannot.
type Narrator struct {
	oracle inference.Oracle
	policy inference.Policy
	logger *zap.Logger
}

func NewNarrator(oracle inference.Oracle, policy inference.Policy, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{oracle: oracle, policy: policy, logger: logger.Named("narrative")}
}

// Narrate always returns a plan and a guide. The anomaly is set only when
// the oracle was configured but gave no answer.
func (n *Narrator) Narrate(ctx context.Context, run *engine.Run, summary diff.Summary) (*Plan, string, *anomaly.Anomaly) {
	if n.oracle == nil {
		return templatePlan(warnNoOracle), templateGuide(run), nil
	}
	payload, err := json.MarshalIndent(summarize(run, summary), "", "  ")
	if err != nil {
		a := anomaly.Newf(anomaly.OracleUnavailable, "", "encode narrative summary: %v", err)
		return unavailablePlan(), unavailableGuide, &a
	}
	out := inference.Attempt(ctx, n.policy, func(ctx context.Context) (string, error) {
		return n.oracle.Narrate(ctx, payload)
	})
	if !out.OK() {
		n.logger.Warn("narrative unavailable", zap.Int("attempts", out.Attempts), zap.Error(out.Err))
		a := anomaly.Newf(anomaly.OracleUnavailable, "", "migration narrative: %v", out.Err)
		return unavailablePlan(), unavailableGuide, &a
	}
	plan, guide, err := ParseNarrative(out.Value)
	if err != nil {
		n.logger.Warn("narrative plan unusable, using template", zap.Error(err))
		plan = templatePlan(warnUnusablePlan)
	}
	if guide == "" {
		guide = templateGuide(run)
	}
	return plan, guide, nil
}

// templateGuide is a deterministic guide built from the run itself.
func templateGuide(run *engine.Run) string {
	var b strings.Builder
	b.WriteString("# Migration Guide\n\n")
	fmt.Fprintf(&b, "Rows are rewritten from %s to %s. Apply the scripts under sql/target in file name order; "+
		"they follow the table dependency order.\n", run.From, run.To)

	var mapped, sequences []string
	for _, t := range run.Tables {
		for _, m := range t.Types {
			if !strings.EqualFold(m.Source, m.Target) {
				mapped = append(mapped, fmt.Sprintf("| %s | %s | %s | %s |", t.Table, m.Column, m.Source, m.Target))
			}
		}
		if t.Forward != nil {
			sequences = append(sequences, t.Forward.DDL...)
		}
	}
	if len(mapped) > 0 {
		b.WriteString("\n## Datatype mapping\n\n| table | column | source | target |\n|---|---|---|---|\n")
		b.WriteString(strings.Join(mapped, "\n"))
		b.WriteString("\n")
	}
	if len(sequences) > 0 {
		b.WriteString("\n## Sequence handling\n\nGenerated keys are drawn from these sequences, created ahead of the inserts:\n\n")
		for _, ddl := range sequences {
			fmt.Fprintf(&b, "- `%s`\n", ddl)
		}
	}
	return b.String()
}
