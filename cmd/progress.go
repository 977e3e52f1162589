package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sql-cleanser/internal/engine"

	"github.com/fatih/color"
	"github.com/gosuri/uiprogress"
)

// progress draws one bar advanced per finished table.
type progress struct {
	label string
	bar   *uiprogress.Bar
}

func newProgress(label string) *progress {
	return &progress{label: label}
}

func (p *progress) start(tables int) {
	if tables == 0 {
		return
	}
	uiprogress.Start()
	p.bar = uiprogress.AddBar(tables).AppendCompleted().PrependElapsed()
	p.bar.PrependFunc(func(b *uiprogress.Bar) string {
		return p.label + ": "
	})
}

func (p *progress) advance(*engine.TableOutcome) {
	if p.bar != nil {
		p.bar.Incr()
	}
}

func (p *progress) stop() {
	if p.bar != nil {
		uiprogress.Stop()
	}
}

func (p *progress) options(dryRun bool) engine.Options {
	return engine.Options{DryRun: dryRun, OnPlanned: p.start, OnProgress: p.advance}
}

// runContext is cancelled on SIGINT or SIGTERM.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func statusMark(status string) string {
	switch status {
	case engine.StatusOK:
		return color.GreenString("✓")
	case engine.StatusFailed:
		return color.RedString("✗")
	}
	return color.YellowString("-")
}

// printSummary lists every table in dependency order.
func printSummary(run *engine.Run, written []string, outURL string) {
	fmt.Println("\n📊 Summary Report (Dependency Order):")
	for i, o := range run.Tables {
		detail := o.Status
		switch {
		case o.Diff != nil && run.Mode == engine.ModeCompare:
			detail = fmt.Sprintf("missing %d, extra %d, mismatched %d",
				len(o.Diff.Missing), len(o.Diff.Extra), len(o.Diff.Mismatches))
		case o.Forward != nil:
			detail = fmt.Sprintf("%d statements", len(o.Forward.Statements))
		}
		fmt.Printf("[%s] [%02d/%02d] %-20s : %s\n", statusMark(o.Status), i+1, len(run.Tables), o.Table, detail)
		if o.ErrorMsg != "" {
			fmt.Printf("    └ Error: %s\n", o.ErrorMsg)
		}
	}
	fmt.Println("--------------------------------------------------")
	if run.Incomplete {
		color.Yellow("Run interrupted: %d tables skipped", run.Count(engine.StatusSkipped))
	}
	if failed := run.Count(engine.StatusFailed); failed > 0 {
		color.Red("Failed tables: %d", failed)
	}
	fmt.Printf("Anomalies: %d\n", len(run.Anomalies))
	fmt.Printf("Artifacts: %d written to %s\n", len(written), outURL)
}
