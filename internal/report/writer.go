package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Output formats of the structured documents.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Writer stores a Report under an output URL.
type Writer struct {
	fs     afs.Service
	format string
	logger *zap.Logger
}

func NewWriter(fs afs.Service, format string, logger *zap.Logger) *Writer {
	if fs == nil {
		fs = afs.New()
	}
	if format == "" {
		format = FormatJSON
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{fs: fs, format: format, logger: logger.Named("writer")}
}

func (w *Writer) encode(v interface{}) ([]byte, error) {
	switch w.format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported output format %q", w.format)
}

func (w *Writer) upload(ctx context.Context, outURL, name string, data []byte) (string, error) {
	URL := url.Join(outURL, name)
	if err := w.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", URL, err)
	}
	return name, nil
}

// Write stores every artifact and returns the written names relative to
// outURL. Failing to write the diff document is fatal and returned at once;
// other failures are combined. Run identity and timing go to run.<format>
// only, so two runs over the same inputs leave every other file identical.
func (w *Writer) Write(ctx context.Context, outURL string, r *Report) ([]string, error) {
	var written []string
	var errs error
	put := func(name string, data []byte) {
		stored, err := w.upload(ctx, outURL, name, data)
		if err != nil {
			errs = multierr.Append(errs, err)
			return
		}
		written = append(written, stored)
	}
	putDocument := func(name string, v interface{}) {
		data, err := w.encode(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to encode %s: %w", name, err))
			return
		}
		put(name+"."+w.format, data)
	}

	if r.Diff != nil {
		data, err := w.encode(r.Diff)
		if err != nil {
			return nil, fmt.Errorf("failed to encode diff document: %w", err)
		}
		name, err := w.upload(ctx, outURL, "diff."+w.format, data)
		if err != nil {
			return nil, err
		}
		written = append(written, name)
		put("diff_report.md", []byte(DiffMarkdown(r.Diff, r.Duplicates, r.Anomalies)))
	}
	if r.Duplicates != nil {
		putDocument("duplicates", r.Duplicates)
	}
	if r.Plan != nil {
		putDocument("migration_plan", r.Plan)
		put("migration_plan.md", []byte(PlanMarkdown(r.Guide, r.Plan)))
	}
	if r.Anomalies != nil {
		putDocument("anomalies", r.Anomalies)
	}
	if r.Run != nil {
		putDocument("run", r.Run)
	}
	for _, s := range r.Scripts {
		put(s.Path, []byte(s.Content))
	}
	w.logger.Info("artifacts written",
		zap.String("url", outURL),
		zap.Int("files", len(written)),
		zap.Error(errs))
	return written, errs
}
