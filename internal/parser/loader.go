package parser

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/schema"

	"github.com/sourcegraph/conc/pool"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultExtensions lists the script file extensions read from an input directory.
var DefaultExtensions = []string{".sql", ".txt"}

// Loader reads every script of a directory into a Dataset.
type Loader struct {
	fs          afs.Service
	parser      *Parser
	extensions  []string
	concurrency int
	logger      *zap.Logger
}

func NewLoader(fs afs.Service, p *Parser, extensions []string, concurrency int, logger *zap.Logger) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{fs: fs, parser: p, extensions: extensions, concurrency: concurrency, logger: logger}
}

// LoadResult is one parsed side.
type LoadResult struct {
	Dataset   *schema.Dataset
	Files     []string
	Errors    []*ParseError
	Anomalies []anomaly.Anomaly
	// Err combines read failures of individual files.
	Err error
}

type fileResult struct {
	name string
	rows []*schema.Row
	errs []*ParseError
	err  error
}

// Load lists URL, parses matching files concurrently and merges them in file
// name order, so the resulting row order does not depend on scheduling.
func (l *Loader) Load(ctx context.Context, URL string, side string) (*LoadResult, error) {
	objects, err := l.fs.List(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s input %s: %w", side, URL, err)
	}
	var files []storage.Object
	for _, object := range objects {
		if object.IsDir() || !l.accepts(object.Name()) {
			continue
		}
		files = append(files, object)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	results := make([]fileResult, len(files))
	p := pool.New().WithMaxGoroutines(l.concurrency)
	for i, object := range files {
		p.Go(func() {
			results[i] = l.loadFile(ctx, object)
		})
	}
	p.Wait()

	result := &LoadResult{Dataset: schema.NewDataset(side)}
	for _, r := range results {
		result.Files = append(result.Files, r.name)
		if r.err != nil {
			result.Err = multierr.Append(result.Err, r.err)
			result.Anomalies = append(result.Anomalies, anomaly.Anomaly{
				Kind: anomaly.InputUnreadable, Side: side, File: r.name, Message: r.err.Error(),
			})
			continue
		}
		for _, row := range r.rows {
			result.Dataset.Add(row)
		}
		for _, e := range r.errs {
			result.Errors = append(result.Errors, e)
			result.Anomalies = append(result.Anomalies, anomaly.Anomaly{
				Kind: anomaly.ParseError, Side: side, File: e.File, Line: e.Line, Message: e.Reason,
			})
		}
	}
	l.logger.Info("dataset loaded",
		zap.String("side", side),
		zap.String("url", URL),
		zap.Int("files", len(files)),
		zap.Int("tables", len(result.Dataset.Tables)),
		zap.Int("rows", result.Dataset.RowCount()),
		zap.Int("parseErrors", len(result.Errors)))
	return result, nil
}

func (l *Loader) loadFile(ctx context.Context, object storage.Object) fileResult {
	result := fileResult{name: object.Name()}
	if err := ctx.Err(); err != nil {
		result.err = err
		return result
	}
	data, err := l.fs.Download(ctx, object)
	if err != nil {
		result.err = fmt.Errorf("failed to read %s: %w", object.URL(), err)
		return result
	}
	result.rows, result.errs = l.parser.ParseAll(object.Name(), data)
	l.logger.Debug("file parsed",
		zap.String("file", object.Name()),
		zap.Int("rows", len(result.rows)),
		zap.Int("errors", len(result.errs)))
	return result
}

func (l *Loader) accepts(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, candidate := range l.extensions {
		if strings.EqualFold(ext, candidate) {
			return true
		}
	}
	return false
}
