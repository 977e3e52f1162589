package report

import (
	"context"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/engine"
	"sql-cleanser/internal/inference"

	"go.uber.org/zap"
)

// Assembler turns a finished run into publishable documents.
type Assembler struct {
	narrator *Narrator
	logger   *zap.Logger
}

// NewAssembler returns an assembler. A nil oracle yields template narratives.
func NewAssembler(oracle inference.Oracle, policy inference.Policy, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{narrator: NewNarrator(oracle, policy, logger), logger: logger.Named("report")}
}

// Assemble builds every document of a run. Compare runs get the diff,
// duplicates and narrative; transform runs only scripts and anomalies.
func (a *Assembler) Assemble(ctx context.Context, run *engine.Run) *Report {
	r := &Report{Mode: run.Mode, Run: newRunDocument(run), Scripts: scripts(run)}
	items := append([]anomaly.Anomaly(nil), run.Anomalies...)
	if run.Mode == engine.ModeCompare {
		r.Diff = newDiffDocument(run)
		r.Duplicates = newDuplicatesDocument(run)
		plan, guide, unavailable := a.narrator.Narrate(ctx, run, r.Diff.Summary)
		r.Plan, r.Guide = plan, guide
		if unavailable != nil {
			items = append(items, *unavailable)
			anomaly.Sort(items)
		}
	}
	r.Anomalies = newAnomaliesDocument(run.Incomplete, items)
	a.logger.Debug("report assembled",
		zap.String("run", run.ID),
		zap.Int("scripts", len(r.Scripts)),
		zap.Int("anomalies", len(items)))
	return r
}
