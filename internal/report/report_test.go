package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/dialect"
	"sql-cleanser/internal/diff"
	"sql-cleanser/internal/dupes"
	"sql-cleanser/internal/engine"
	"sql-cleanser/internal/inference"
	"sql-cleanser/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

type narrativeOracle struct {
	response string
	err      error
	payload  []byte
}

func (n *narrativeOracle) SuggestKey(ctx context.Context, req inference.KeyRequest) ([]string, error) {
	return nil, errors.New("not used")
}

func (n *narrativeOracle) Narrate(ctx context.Context, summary []byte) (string, error) {
	n.payload = summary
	return n.response, n.err
}

var fastPolicy = inference.Policy{Attempts: 3, Timeout: time.Second, Backoff: time.Millisecond}

func sampleRun() *engine.Run {
	key := schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceHeuristic}
	users := &diff.TableResult{
		Table: "users", Key: key, SourceRows: 5, TargetRows: 0,
		Missing: []diff.Entry{
			{Key: []string{"1"}, File: "users.sql", Line: 1},
			{Key: []string{"2"}, File: "users.sql", Line: 2},
			{Key: []string{"3"}, File: "users.sql", Line: 3},
			{Key: []string{"4"}, File: "users.sql", Line: 4},
			{Key: []string{"5"}, File: "users.sql", Line: 5},
		},
		Extra:      []diff.Entry{},
		Mismatches: []diff.Mismatch{},
	}
	orders := &diff.TableResult{
		Table: "orders", Key: key, SourceRows: 1, TargetRows: 1, Matched: 1,
		Missing: []diff.Entry{},
		Extra:   []diff.Entry{},
		Mismatches: []diff.Mismatch{{
			Key: []string{"5"},
			Columns: []diff.ColumnMismatch{{
				Column: "status",
				Source: diff.Cell{Raw: "'OPEN'", Kind: schema.KindString},
				Target: diff.Cell{Raw: "'CLOSED'", Kind: schema.KindString},
			}},
		}},
	}
	return &engine.Run{
		ID:        "run-1",
		Mode:      engine.ModeCompare,
		SourceURL: "/in/source",
		TargetURL: "/in/target",
		From:      "postgres",
		To:        "oracle",
		Tables: []*engine.TableOutcome{
			{
				Table: "users", Rank: 0, Status: engine.StatusOK, Key: key, Diff: users,
				Forward: &dialect.Output{
					Table:      "USERS",
					DDL:        []string{"CREATE SEQUENCE USERS_SEQ START WITH 6 INCREMENT BY 1 NOCACHE;"},
					Statements: []dialect.Statement{{SQL: "INSERT INTO USERS (ID) VALUES (USERS_SEQ.NEXTVAL);"}},
				},
				Types: []dialect.TypeMapping{{Column: "id", Source: "integer", Target: "NUMBER(10)"}},
				Duplicates: []*dupes.Report{
					{Table: "users", Side: "source", Rows: 5, Fuzzy: []dupes.Pair{{Score: 0.9}}},
				},
			},
			{Table: "orders", Rank: 1, Status: engine.StatusOK, Key: key, Diff: orders},
		},
		Anomalies: []anomaly.Anomaly{anomaly.New(anomaly.ParseError, "", "bad tuple")},
	}
}

func TestParseNarrative(t *testing.T) {
	text := "# Guide\n\nUse NUMBER(10) for integer.\n\n```json\n" +
		`{"steps": ["load users", "load orders"], "risk_level": "low", "estimated_effort": "2 hours", "warnings": []}` +
		"\n```\n"
	plan, guide, err := ParseNarrative(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"load users", "load orders"}, plan.Steps)
	assert.Equal(t, RiskLow, plan.RiskLevel)
	assert.Equal(t, "2 hours", plan.EstimatedEffort)
	assert.Equal(t, OriginOracle, plan.Origin)
	assert.Equal(t, "# Guide\n\nUse NUMBER(10) for integer.", guide)

	_, guide, err = ParseNarrative("# Guide only, no plan here")
	assert.ErrorIs(t, err, errNoPlan)
	assert.Equal(t, "# Guide only, no plan here", guide)

	_, guide, err = ParseNarrative(`Intro {"risk_level": "HIGH"}`)
	assert.ErrorIs(t, err, errNoPlan)
	assert.Equal(t, "Intro", guide)
}

func TestNarrator(t *testing.T) {
	run := sampleRun()
	summary := diff.Summarize(run.Results())

	t.Run("no oracle", func(t *testing.T) {
		plan, guide, a := NewNarrator(nil, fastPolicy, zaptest.NewLogger(t)).Narrate(context.Background(), run, summary)
		assert.Nil(t, a)
		assert.Equal(t, RiskMedium, plan.RiskLevel)
		assert.Equal(t, OriginTemplate, plan.Origin)
		assert.Contains(t, guide, "| users | id | integer | NUMBER(10) |")
		assert.Contains(t, guide, "CREATE SEQUENCE USERS_SEQ")
		require.NotEmpty(t, plan.Warnings)
		assert.Equal(t, warnNoOracle, plan.Warnings[0])
		for _, w := range plan.Warnings {
			assert.NotContains(t, w, "failed")
		}
	})

	t.Run("oracle fails", func(t *testing.T) {
		oracle := &narrativeOracle{err: errors.New("connection refused")}
		plan, guide, a := NewNarrator(oracle, fastPolicy, zaptest.NewLogger(t)).Narrate(context.Background(), run, summary)
		require.NotNil(t, a)
		assert.Equal(t, anomaly.OracleUnavailable, a.Kind)
		assert.Contains(t, a.Message, "gave up after 3 attempts")
		assert.Equal(t, RiskHigh, plan.RiskLevel)
		assert.Equal(t, "Manual assessment needed", plan.EstimatedEffort)
		assert.Equal(t, unavailableGuide, guide)
	})

	t.Run("invalid plan keeps guide", func(t *testing.T) {
		oracle := &narrativeOracle{response: "# Guide\n\nSequences first."}
		plan, guide, a := NewNarrator(oracle, fastPolicy, zaptest.NewLogger(t)).Narrate(context.Background(), run, summary)
		assert.Nil(t, a)
		assert.Equal(t, RiskMedium, plan.RiskLevel)
		assert.Equal(t, "4-8 hours", plan.EstimatedEffort)
		assert.Equal(t, warnUnusablePlan, plan.Warnings[0])
		assert.Equal(t, "# Guide\n\nSequences first.", guide)
	})

	t.Run("reduced payload", func(t *testing.T) {
		oracle := &narrativeOracle{response: `{"steps": ["a"], "risk_level": "LOW", "estimated_effort": "1h", "warnings": []}`}
		plan, _, _ := NewNarrator(oracle, fastPolicy, zaptest.NewLogger(t)).Narrate(context.Background(), run, summary)
		assert.Equal(t, OriginOracle, plan.Origin)

		var sent narrativeSummary
		require.NoError(t, json.Unmarshal(oracle.payload, &sent))
		assert.Equal(t, 5, sent.TotalMissing)
		assert.Equal(t, 1, sent.TotalMismatches)
		assert.Equal(t, []string{"orders", "users"}, sent.TablesAffected)
		assert.Len(t, sent.SampleMissing, 3)
		assert.Empty(t, sent.SampleExtra)
		require.Len(t, sent.SampleMismatches, 1)
		assert.Equal(t, []string{"status"}, sent.SampleMismatches[0].Columns)
	})
}

func TestAssembleAndWrite(t *testing.T) {
	run := sampleRun()
	oracle := &narrativeOracle{err: errors.New("down")}
	r := NewAssembler(oracle, inference.Policy{Attempts: 1}, zaptest.NewLogger(t)).Assemble(context.Background(), run)

	require.NotNil(t, r.Diff)
	assert.Equal(t, []string{"users", "orders"}, []string{r.Diff.Tables[0].Table, r.Diff.Tables[1].Table})
	assert.Equal(t, 5, r.Diff.Summary.Totals.Missing)
	require.Len(t, r.Duplicates.Tables, 1)
	assert.Equal(t, 1, r.Anomalies.Counts[anomaly.OracleUnavailable])
	assert.Equal(t, 1, r.Anomalies.Counts[anomaly.ParseError])
	require.Len(t, r.Scripts, 1)
	assert.Equal(t, "sql/target/001_users.sql", r.Scripts[0].Path)

	dir := t.TempDir()
	written, err := NewWriter(afs.New(), FormatJSON, zaptest.NewLogger(t)).Write(context.Background(), dir, r)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"diff.json", "diff_report.md", "duplicates.json", "migration_plan.json",
		"migration_plan.md", "anomalies.json", "run.json", "sql/target/001_users.sql",
	}, written)

	data, err := os.ReadFile(filepath.Join(dir, "diff.json"))
	require.NoError(t, err)
	var doc DiffDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.Summary.Totals.Mismatches)
	assert.NotContains(t, string(data), "run-1")

	data, err = os.ReadFile(filepath.Join(dir, "run.json"))
	require.NoError(t, err)
	var runDoc RunDocument
	require.NoError(t, json.Unmarshal(data, &runDoc))
	assert.Equal(t, "run-1", runDoc.RunID)
	assert.Equal(t, engine.ModeCompare, runDoc.Mode)
	assert.Equal(t, 2, runDoc.Tables)

	script, err := os.ReadFile(filepath.Join(dir, "sql", "target", "001_users.sql"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(script)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "-- sql-cleanser: table users (USERS), postgres -> oracle, rows missing from target: 1 statements", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "CREATE SEQUENCE"))
	assert.True(t, strings.HasPrefix(lines[2], "INSERT INTO USERS"))

	md, err := os.ReadFile(filepath.Join(dir, "diff_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "- Missing in target: 5")
	assert.Contains(t, string(md), "| (5) | status | `'OPEN'` | `'CLOSED'` |")
	assert.Contains(t, string(md), "[oracle_unavailable]")

	plan, err := os.ReadFile(filepath.Join(dir, "migration_plan.md"))
	require.NoError(t, err)
	assert.Contains(t, string(plan), "- Risk level: HIGH")
}

func TestWrite_YAML(t *testing.T) {
	run := sampleRun()
	run.Incomplete = true
	r := NewAssembler(nil, fastPolicy, zaptest.NewLogger(t)).Assemble(context.Background(), run)

	dir := t.TempDir()
	_, err := NewWriter(afs.New(), FormatYAML, zaptest.NewLogger(t)).Write(context.Background(), dir, r)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "diff.yaml"))
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.NotContains(t, doc, "run_id")
	assert.Equal(t, true, doc["incomplete"])

	data, err = os.ReadFile(filepath.Join(dir, "run.yaml"))
	require.NoError(t, err)
	var runDoc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &runDoc))
	assert.Equal(t, "run-1", runDoc["run_id"])
	assert.Equal(t, true, runDoc["incomplete"])

	md, err := os.ReadFile(filepath.Join(dir, "diff_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "**INCOMPLETE**")
}

func TestWrite_RepeatRunsMatchOutsideRunDocument(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			var dirs []string
			var names []string
			for i, id := range []string{"run-1", "run-2"} {
				run := sampleRun()
				run.ID = id
				run.StartedAt = time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC)
				run.FinishedAt = run.StartedAt.Add(time.Duration(i+1) * time.Minute)
				r := NewAssembler(nil, fastPolicy, zaptest.NewLogger(t)).Assemble(context.Background(), run)

				dir := t.TempDir()
				written, err := NewWriter(afs.New(), format, zaptest.NewLogger(t)).Write(context.Background(), dir, r)
				require.NoError(t, err)
				dirs, names = append(dirs, dir), written
			}
			for _, name := range names {
				first, err := os.ReadFile(filepath.Join(dirs[0], name))
				require.NoError(t, err)
				second, err := os.ReadFile(filepath.Join(dirs[1], name))
				require.NoError(t, err)
				if name == "run."+format {
					assert.NotEqual(t, string(first), string(second))
					continue
				}
				assert.Equal(t, string(first), string(second), name)
			}
		})
	}
}

func TestAssemble_TransformRun(t *testing.T) {
	run := &engine.Run{
		ID: "run-2", Mode: engine.ModeTransform, From: "oracle", To: "postgres",
		Tables: []*engine.TableOutcome{{
			Table: "users", Rank: 2, Status: engine.StatusOK,
			Forward: &dialect.Output{Table: "users", Statements: []dialect.Statement{{SQL: "INSERT INTO users (id) VALUES (1);"}}},
		}},
	}
	r := NewAssembler(nil, fastPolicy, nil).Assemble(context.Background(), run)
	assert.Nil(t, r.Diff)
	assert.Nil(t, r.Plan)
	require.Len(t, r.Scripts, 1)
	assert.Equal(t, "sql/003_users.sql", r.Scripts[0].Path)
	assert.Contains(t, r.Scripts[0].Content, "oracle -> postgres, every row: 1 statements")
	assert.Empty(t, r.Anomalies.Items)
}
