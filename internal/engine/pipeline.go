package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/config"
	"sql-cleanser/internal/dialect"
	"sql-cleanser/internal/diff"
	"sql-cleanser/internal/dupes"
	"sql-cleanser/internal/inference"
	"sql-cleanser/internal/keys"
	"sql-cleanser/internal/parser"
	"sql-cleanser/internal/schema"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"github.com/viant/afs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNoInput is fatal: neither side produced a single row.
var ErrNoInput = errors.New("no parseable rows in either input")

// Table statuses.
const (
	StatusOK      = "OK"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// Run modes.
const (
	ModeCompare   = "compare"
	ModeTransform = "transform"
)

// TableOutcome is everything one worker produced for one logical table.
type TableOutcome struct {
	Table      string
	Rank       int
	Status     string
	ErrorMsg   string
	Key        schema.Key
	Diff       *diff.TableResult
	Duplicates []*dupes.Report
	// Forward holds missing rows rewritten for the target dialect, or every
	// row in transform mode. Backward holds extra rows rewritten for the
	// source dialect.
	Forward   *dialect.Output
	Backward  *dialect.Output
	Types     []dialect.TypeMapping
	Anomalies []anomaly.Anomaly
}

func (o *TableOutcome) fail(key schema.Key, err error) {
	o.Status = StatusFailed
	o.ErrorMsg = err.Error()
	o.Diff = diff.Failed(o.Table, key, err)
	o.Anomalies = append(o.Anomalies, anomaly.New(anomaly.TableDiffFailure, o.Table, err.Error()))
}

// Run is the result of one invocation. Tables follow dependency order.
type Run struct {
	ID          string
	Mode        string
	SourceURL   string
	TargetURL   string
	From        string
	To          string
	StartedAt   time.Time
	FinishedAt  time.Time
	SourceFiles []string
	TargetFiles []string
	Graph       *schema.DependencyGraph
	Tables      []*TableOutcome
	Anomalies   []anomaly.Anomaly
	// Incomplete is set when cancellation left tables undispatched.
	Incomplete bool

	errs error
}

// Err combines input read failures and table failures.
func (r *Run) Err() error {
	err := r.errs
	for _, t := range r.Tables {
		if t.Status == StatusFailed {
			err = multierr.Append(err, fmt.Errorf("table %s: %s", t.Table, t.ErrorMsg))
		}
	}
	return err
}

// Results returns the diff of every table that reached the diff stage.
func (r *Run) Results() []*diff.TableResult {
	var results []*diff.TableResult
	for _, t := range r.Tables {
		if t.Diff != nil {
			results = append(results, t.Diff)
		}
	}
	return results
}

func (r *Run) Count(status string) int {
	n := 0
	for _, t := range r.Tables {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Options are per-invocation hooks.
type Options struct {
	// DryRun stops after the diff and duplicate stages.
	DryRun bool
	// OnPlanned receives the number of tables before dispatch starts.
	OnPlanned func(total int)
	// OnProgress is called from workers as each table finishes; it must be
	// safe for concurrent use.
	OnProgress func(outcome *TableOutcome)
}

type Engine struct {
	cfg    config.Config
	fs     afs.Service
	oracle inference.Oracle
	logger *zap.Logger
}

// New returns an engine. A nil oracle disables inference.
func New(cfg config.Config, fs afs.Service, oracle inference.Oracle, logger *zap.Logger) *Engine {
	if fs == nil {
		fs = afs.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, fs: fs, oracle: oracle, logger: logger.Named("engine")}
}

type job struct {
	name      string
	rank      int
	source    *schema.Table
	target    *schema.Table
	sourceKey *keys.Future
	targetKey *keys.Future
}

func (j *job) ready() bool {
	return (j.sourceKey == nil || j.sourceKey.Ready()) && (j.targetKey == nil || j.targetKey.Ready())
}

// awaitKeys attaches each side's key to its table. Only the worker owning
// the job touches these tables.
func (j *job) awaitKeys(out *TableOutcome) {
	if j.sourceKey != nil {
		key, anomalies := j.sourceKey.Wait()
		j.source.Key = key
		out.Anomalies = append(out.Anomalies, anomalies...)
	}
	if j.targetKey != nil {
		key, anomalies := j.targetKey.Wait()
		j.target.Key = key
		out.Anomalies = append(out.Anomalies, anomalies...)
	}
}

func (e *Engine) loader(dialectName string) *parser.Loader {
	p := e.cfg.Processing
	return parser.NewLoader(e.fs, parser.New(dialectName), p.Extensions, p.Concurrency, e.logger)
}

func (e *Engine) inferrer() *keys.Inferrer {
	return keys.New(e.cfg.Processing.SampleSize, e.oracle, inference.NewPolicy(e.cfg.Inference), e.logger)
}

func (e *Engine) newRun(mode, sourceURL, targetURL string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		SourceURL: sourceURL,
		TargetURL: targetURL,
		From:      e.cfg.Dialects.Source,
		To:        e.cfg.Dialects.Target,
		StartedAt: time.Now(),
	}
}

// Compare loads both sides, diffs every logical table and rewrites the
// differences in both directions.
func (e *Engine) Compare(ctx context.Context, sourceURL, targetURL string, opts Options) (*Run, error) {
	forward, err := dialect.NewTransformer(e.cfg.Dialects.Source, e.cfg.Dialects.Target, e.logger)
	if err != nil {
		return nil, err
	}
	run := e.newRun(ModeCompare, sourceURL, targetURL)

	var (
		source, target       *parser.LoadResult
		sourceErr, targetErr error
	)
	wg := conc.NewWaitGroup()
	wg.Go(func() { source, sourceErr = e.loader(run.From).Load(ctx, sourceURL, "source") })
	wg.Go(func() { target, targetErr = e.loader(run.To).Load(ctx, targetURL, "target") })
	wg.Wait()
	if err := multierr.Combine(sourceErr, targetErr); err != nil {
		return nil, err
	}
	if source.Dataset.RowCount()+target.Dataset.RowCount() == 0 {
		return nil, fmt.Errorf("%w: %s, %s", ErrNoInput, sourceURL, targetURL)
	}
	run.SourceFiles, run.TargetFiles = source.Files, target.Files
	run.errs = multierr.Combine(source.Err, target.Err)

	log := &anomaly.Log{}
	log.Add(source.Anomalies...)
	log.Add(target.Anomalies...)

	graph, cycles := schema.BuildGraph(source.Dataset, target.Dataset)
	log.Add(cycles...)
	run.Graph = graph

	inferrer := e.inferrer()
	jobs := make([]*job, 0, len(graph.Order))
	for rank, name := range graph.Order {
		j := &job{name: name, rank: rank, source: source.Dataset.Table(name), target: target.Dataset.Table(name)}
		if j.source != nil {
			j.sourceKey = inferrer.Start(ctx, j.source, "source")
		}
		if j.target != nil {
			j.targetKey = inferrer.Start(ctx, j.target, "target")
		}
		jobs = append(jobs, j)
	}

	detector := dupes.NewDetector(dupes.Options{
		Threshold:  e.cfg.DataQuality.SimilarityThreshold,
		RowCeiling: e.cfg.DataQuality.FuzzyRowCeiling,
		Exclude:    e.cfg.IsExcluded,
	}, e.logger)

	run.Tables = e.dispatch(ctx, jobs, opts, func(j *job, out *TableOutcome) {
		e.compareTable(j, out, forward, detector, opts.DryRun)
	})
	e.finish(run, log)
	return run, nil
}

// Transform rewrites a whole dataset written in the source dialect into the
// target dialect, one output per table in dependency order.
func (e *Engine) Transform(ctx context.Context, inputURL string, opts Options) (*Run, error) {
	transformer, err := dialect.NewTransformer(e.cfg.Dialects.Source, e.cfg.Dialects.Target, e.logger)
	if err != nil {
		return nil, err
	}
	run := e.newRun(ModeTransform, inputURL, "")
	input, err := e.loader(run.From).Load(ctx, inputURL, "source")
	if err != nil {
		return nil, err
	}
	if input.Dataset.RowCount() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInput, inputURL)
	}
	run.SourceFiles = input.Files
	run.errs = input.Err

	log := &anomaly.Log{}
	log.Add(input.Anomalies...)
	graph, cycles := schema.BuildGraph(input.Dataset)
	log.Add(cycles...)
	run.Graph = graph

	inferrer := e.inferrer()
	jobs := make([]*job, 0, len(graph.Order))
	for rank, name := range graph.Order {
		t := input.Dataset.Table(name)
		jobs = append(jobs, &job{name: name, rank: rank, source: t, sourceKey: inferrer.Start(ctx, t, "source")})
	}

	run.Tables = e.dispatch(ctx, jobs, opts, func(j *job, out *TableOutcome) {
		j.awaitKeys(out)
		out.Key = j.source.Key
		profile := dialect.ProfileTable(j.source, out.Key, transformer.From)
		out.Forward = transformer.Transform(j.name, out.Key, j.source.Rows, profile)
		out.Anomalies = append(out.Anomalies, out.Forward.Warnings...)
		out.Types = transformer.ColumnTypes(profile)
	})
	e.finish(run, log)
	return run, nil
}

// dispatch runs work for every job on a bounded pool. Jobs whose keys are
// already known go first; the rest keep dependency order. Once ctx is done
// no further job starts, and every job not started is reported as skipped.
func (e *Engine) dispatch(ctx context.Context, jobs []*job, opts Options, work func(j *job, out *TableOutcome)) []*TableOutcome {
	if opts.OnPlanned != nil {
		opts.OnPlanned(len(jobs))
	}
	queue := make([]*job, 0, len(jobs))
	var waiting []*job
	for _, j := range jobs {
		if j.ready() {
			queue = append(queue, j)
		} else {
			waiting = append(waiting, j)
		}
	}
	queue = append(queue, waiting...)

	outcomes := make([]*TableOutcome, len(jobs))
	p := pool.New().WithMaxGoroutines(max(e.cfg.Processing.Concurrency, 1))
	for _, j := range queue {
		if err := ctx.Err(); err != nil {
			outcomes[j.rank] = skipped(j, err)
			continue
		}
		p.Go(func() {
			var out *TableOutcome
			if err := ctx.Err(); err != nil {
				out = skipped(j, err)
			} else {
				out = e.runJob(j, work)
			}
			outcomes[j.rank] = out
			if opts.OnProgress != nil {
				opts.OnProgress(out)
			}
		})
	}
	p.Wait()
	return outcomes
}

func skipped(j *job, cause error) *TableOutcome {
	msg := fmt.Sprintf("not processed: %v", cause)
	return &TableOutcome{
		Table:     j.name,
		Rank:      j.rank,
		Status:    StatusSkipped,
		ErrorMsg:  msg,
		Anomalies: []anomaly.Anomaly{anomaly.New(anomaly.TableSkipped, j.name, msg)},
	}
}

func (e *Engine) runJob(j *job, work func(j *job, out *TableOutcome)) (out *TableOutcome) {
	started := time.Now()
	out = &TableOutcome{Table: j.name, Rank: j.rank, Status: StatusOK}
	defer func() {
		if r := recover(); r != nil {
			out.fail(out.Key, fmt.Errorf("table %s: panicked: %v", j.name, r))
		}
		e.logger.Debug("table processed",
			zap.String("table", j.name),
			zap.String("status", out.Status),
			zap.Duration("elapsed", time.Since(started)))
	}()
	work(j, out)
	return out
}

func (e *Engine) compareTable(j *job, out *TableOutcome, forward *dialect.Transformer, detector *dupes.Detector, dryRun bool) {
	j.awaitKeys(out)
	key, err := keys.Resolve(j.source, j.target)
	if err != nil {
		out.fail(key, err)
		return
	}
	out.Key = key

	result, anomalies, err := diff.Compare(j.source, j.target, key, diff.Options{Exclude: e.cfg.IsExcluded})
	out.Anomalies = append(out.Anomalies, anomalies...)
	if err != nil {
		out.fail(key, err)
		return
	}
	out.Diff = result

	for _, side := range []struct {
		name  string
		table *schema.Table
	}{{"source", j.source}, {"target", j.target}} {
		if side.table == nil {
			continue
		}
		report, anomalies := detector.Detect(side.table, side.name, key)
		out.Duplicates = append(out.Duplicates, report)
		out.Anomalies = append(out.Anomalies, anomalies...)
	}
	if dryRun {
		return
	}

	var sourceProfile, targetProfile *dialect.Profile
	if j.source != nil {
		sourceProfile = dialect.ProfileTable(j.source, key, forward.From)
		out.Types = forward.ColumnTypes(sourceProfile)
	}
	if j.target != nil {
		targetProfile = dialect.ProfileTable(j.target, key, forward.To)
		if out.Types == nil {
			out.Types = forward.Reverse().ColumnTypes(targetProfile)
		}
	}
	// generated keys must clear existing keys on both sides
	if sourceProfile != nil && targetProfile != nil {
		top := max(sourceProfile.MaxKey, targetProfile.MaxKey)
		sourceProfile.MaxKey, targetProfile.MaxKey = top, top
	}
	if len(result.Missing) > 0 {
		out.Forward = forward.Transform(j.name, key, rows(result.Missing), sourceProfile)
		out.Anomalies = append(out.Anomalies, out.Forward.Warnings...)
	}
	if len(result.Extra) > 0 {
		out.Backward = forward.Reverse().Transform(j.name, key, rows(result.Extra), targetProfile)
		out.Anomalies = append(out.Anomalies, out.Backward.Warnings...)
	}
}

func rows(entries []diff.Entry) []*schema.Row {
	result := make([]*schema.Row, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Row)
	}
	return result
}

func (e *Engine) finish(run *Run, log *anomaly.Log) {
	for _, t := range run.Tables {
		log.Add(t.Anomalies...)
		if t.Status == StatusSkipped {
			run.Incomplete = true
		}
	}
	run.Anomalies = log.Sorted()
	run.FinishedAt = time.Now()
	e.logger.Info("run finished",
		zap.String("run", run.ID),
		zap.String("mode", run.Mode),
		zap.Int("tables", len(run.Tables)),
		zap.Int("failed", run.Count(StatusFailed)),
		zap.Int("skipped", run.Count(StatusSkipped)),
		zap.Int("anomalies", len(run.Anomalies)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
}
