package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sql-cleanser/internal/dialect"
	"sql-cleanser/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"go.uber.org/zap"
)

// DefaultRows is the number of source rows per table.
const DefaultRows = 50

type column struct {
	name string
	ref  string // table referenced by a *_id column
}

type table struct {
	name    string
	columns []column
	mutable string // column edited on mismatched rows
}

func columns(names ...string) []column {
	result := make([]column, len(names))
	for i, n := range names {
		result[i] = column{name: n}
	}
	return result
}

// catalog is listed in dependency order.
var catalog = []table{
	{name: "categories", columns: columns("id", "name", "description"), mutable: "description"},
	{name: "users", columns: columns("id", "name", "email", "phone", "address", "is_active", "reg_dt"), mutable: "email"},
	{name: "products", columns: []column{
		{name: "id"}, {name: "category_id", ref: "categories"}, {name: "title"},
		{name: "price"}, {name: "stock_qty"}, {name: "sale_yn"},
	}, mutable: "title"},
	{name: "orders", columns: []column{
		{name: "id"}, {name: "user_id", ref: "users"}, {name: "product_id", ref: "products"},
		{name: "status"}, {name: "amt"}, {name: "created_at"},
	}, mutable: "status"},
}

var statuses = []string{"OPEN", "PAID", "SHIPPED", "CLOSED", "CANCELLED"}

var (
	periodStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
)

// Options controls a generated dataset pair. Seed 0 picks a time based
// seed, recorded in the manifest.
type Options struct {
	Rows int
	Seed int64
	From string
	To   string
}

// Manifest records the injected divergences per table, so a comparison of
// the pair can be checked against it.
type Manifest struct {
	Seed           int64          `json:"seed" yaml:"seed"`
	From           string         `json:"from" yaml:"from"`
	To             string         `json:"to" yaml:"to"`
	Tables         []string       `json:"tables" yaml:"tables"`
	Rows           map[string]int `json:"rows" yaml:"rows"`
	Missing        map[string]int `json:"missing" yaml:"missing"`
	Extra          map[string]int `json:"extra" yaml:"extra"`
	Mismatched     map[string]int `json:"mismatched" yaml:"mismatched"`
	NearDuplicates map[string]int `json:"near_duplicates" yaml:"near_duplicates"`
	Files          []string       `json:"files" yaml:"files"`
}

// Tables are the generated rows of one table on both sides.
type Tables struct {
	Name   string
	Source []*schema.Row
	Target []*schema.Row
}

type Generator struct {
	opts   Options
	source *dialect.Transformer
	target *dialect.Transformer
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) (*Generator, error) {
	if opts.Rows <= 0 {
		opts.Rows = DefaultRows
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	source, err := dialect.NewTransformer(opts.From, opts.From, logger)
	if err != nil {
		return nil, err
	}
	target, err := dialect.NewTransformer(opts.From, opts.To, logger)
	if err != nil {
		return nil, err
	}
	return &Generator{opts: opts, source: source, target: target, logger: logger.Named("fixture")}, nil
}

func newManifest(opts Options) *Manifest {
	return &Manifest{
		Seed:           opts.Seed,
		From:           opts.From,
		To:             opts.To,
		Rows:           map[string]int{},
		Missing:        map[string]int{},
		Extra:          map[string]int{},
		Mismatched:     map[string]int{},
		NearDuplicates: map[string]int{},
	}
}

// Generate builds both sides. In every table, row i is dropped from the
// target when i%10 == 3 and edited when i%10 == 7; a tenth as many new rows
// are appended to the target only. Every tenth user from the fifth on is a
// near copy of the previous one.
func (g *Generator) Generate() ([]Tables, *Manifest) {
	f := gofakeit.New(g.opts.Seed)
	manifest := newManifest(g.opts)
	var result []Tables
	for _, t := range catalog {
		tables := Tables{Name: t.name}
		for i := 1; i <= g.opts.Rows; i++ {
			row := g.row(f, t, i)
			if t.name == "users" && i%10 == 5 && i > 1 {
				row = nearCopy(tables.Source[i-2], i)
				manifest.NearDuplicates[t.name]++
			}
			tables.Source = append(tables.Source, row)
			switch i % 10 {
			case 3:
				manifest.Missing[t.name]++
				continue
			case 7:
				row = edited(row, t.mutable)
				manifest.Mismatched[t.name]++
			}
			tables.Target = append(tables.Target, row)
		}
		for i := 0; i < max(g.opts.Rows/10, 1); i++ {
			tables.Target = append(tables.Target, g.row(f, t, g.opts.Rows+i+1))
			manifest.Extra[t.name]++
		}
		manifest.Tables = append(manifest.Tables, t.name)
		manifest.Rows[t.name] = len(tables.Source)
		result = append(result, tables)
	}
	return result, manifest
}

func (g *Generator) row(f *gofakeit.Faker, t table, id int) *schema.Row {
	row := &schema.Row{Table: t.name, Columns: make([]string, len(t.columns)), Values: make([]schema.Value, len(t.columns))}
	for i, c := range t.columns {
		row.Columns[i] = c.name
		row.Values[i] = g.value(f, t, c, id)
	}
	return row
}

func (g *Generator) value(f *gofakeit.Faker, t table, c column, id int) schema.Value {
	meaning := strings.Fields(schema.ColumnMeaning(c.name))
	has := func(word string) bool {
		for _, m := range meaning {
			if m == word {
				return true
			}
		}
		return false
	}
	switch {
	case c.name == "id":
		return integer(id)
	case c.ref != "":
		return integer(f.Number(1, g.opts.Rows))
	case dialect.BooleanName(c.name):
		return boolean(f.Bool())
	case schema.IsTemporalColumn(c.name):
		at := f.DateRange(periodStart, periodEnd)
		if has("date") {
			return datetime(at.Format("2006-01-02"))
		}
		return datetime(at.Format("2006-01-02 15:04:05"))
	case has("email"):
		return text(f.Email())
	case has("phone"):
		return text(fmt.Sprintf("010-%04d-%04d", f.Number(0, 9999), f.Number(0, 9999)))
	case has("address"):
		return text(fmt.Sprintf("%s %s %s %d번길", f.RandomString(cities), f.RandomString(districts), f.RandomString(streets), f.Number(1, 100)))
	case has("name") && t.name == "categories":
		return text(fmt.Sprintf("%s-%d", translate(words(f, 1)), id))
	case has("name"):
		return text(f.RandomString(lastNames) + f.RandomString(firstNames))
	case has("title"):
		return text(translate(words(f, 2)))
	case has("description"):
		return text(translate(words(f, 6)))
	case has("status"):
		return text(f.RandomString(statuses))
	case has("price"), has("amount"):
		return decimal(f.Price(0.99, 99.99))
	case has("quantity"):
		return integer(f.Number(0, 500))
	}
	return text(f.Word())
}

func words(f *gofakeit.Faker, n int) []string {
	result := make([]string, n)
	for i := range result {
		result[i] = f.RandomString(englishWords)
	}
	return result
}

func translate(words []string) string {
	result := make([]string, len(words))
	for i, w := range words {
		if kor := englishToKorean[w]; kor != "" {
			result[i] = kor
		} else {
			result[i] = w
		}
	}
	return strings.Join(result, " ")
}

// nearCopy repeats prev under a new id with doubled spacing in its name.
func nearCopy(prev *schema.Row, id int) *schema.Row {
	row := &schema.Row{Table: prev.Table, Columns: prev.Columns, Values: append([]schema.Value(nil), prev.Values...)}
	for i, c := range row.Columns {
		switch c {
		case "id":
			row.Values[i] = integer(id)
		case "name":
			runes := []rune(prev.Values[i].Text)
			if len(runes) > 1 {
				row.Values[i] = text(string(runes[:1]) + "  " + string(runes[1:]))
			}
		}
	}
	return row
}

func edited(row *schema.Row, column string) *schema.Row {
	out := &schema.Row{Table: row.Table, Columns: row.Columns, Values: append([]schema.Value(nil), row.Values...)}
	if i := out.Index(column); i >= 0 {
		out.Values[i] = text(out.Values[i].Text + " (수정)")
	}
	return out
}

func integer(n int) schema.Value {
	s := strconv.Itoa(n)
	return schema.Value{Raw: s, Text: s, Kind: schema.KindInteger}
}

func decimal(f float64) schema.Value {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	return schema.Value{Raw: s, Text: s, Kind: schema.KindDecimal}
}

func text(s string) schema.Value {
	return schema.Value{Raw: "'" + strings.ReplaceAll(s, "'", "''") + "'", Text: s, Kind: schema.KindString}
}

func boolean(b bool) schema.Value {
	if b {
		return schema.Value{Raw: "TRUE", Text: "true", Kind: schema.KindBoolean}
	}
	return schema.Value{Raw: "FALSE", Text: "false", Kind: schema.KindBoolean}
}

func datetime(s string) schema.Value {
	return schema.Value{Raw: "'" + s + "'", Text: s, Kind: schema.KindDatetime}
}

var idKey = schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceHeuristic}

// Render returns the script of one side of a table.
func (g *Generator) Render(t Tables, target bool) string {
	tr, rows := g.source, t.Source
	if target {
		tr, rows = g.target, t.Target
	}
	return tr.Transform(t.Name, idKey, rows, nil).SQL()
}

// Write generates the pair and stores it as source/NN_table.sql,
// target/NN_table.sql and manifest.json under outURL.
func (g *Generator) Write(ctx context.Context, fs afs.Service, outURL string) (*Manifest, error) {
	if fs == nil {
		fs = afs.New()
	}
	tables, manifest := g.Generate()
	for i, t := range tables {
		name := fmt.Sprintf("%02d_%s.sql", i+1, t.Name)
		for _, side := range []string{"source", "target"} {
			content := g.Render(t, side == "target")
			URL := url.Join(outURL, side, name)
			if err := fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader(content)); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", URL, err)
			}
			manifest.Files = append(manifest.Files, side+"/"+name)
		}
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	URL := url.Join(outURL, "manifest.json")
	if err := fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", URL, err)
	}
	g.logger.Info("fixture written",
		zap.String("url", outURL),
		zap.String("from", g.opts.From),
		zap.String("to", g.opts.To),
		zap.Int("rows", g.opts.Rows),
		zap.Int("files", len(manifest.Files)))
	return manifest, nil
}
