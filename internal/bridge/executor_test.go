package bridge_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CedricPei/MAS-RAG/internal/bridge"
	"github.com/CedricPei/MAS-RAG/internal/catalog"
	"github.com/CedricPei/MAS-RAG/internal/catalog/catalogtest"
	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/pkg/config"
)

// countingOpener records how many handles were opened and closed.
type countingOpener struct {
	cat    *catalog.Catalog
	opened []*sql.DB
}

func (o *countingOpener) Open(ctx context.Context, dbID string) (*sql.DB, catalog.Dialect, error) {
	db, d, err := o.cat.Open(ctx, dbID)
	if err == nil {
		o.opened = append(o.opened, db)
	}
	return db, d, err
}

func newExecutor(t *testing.T) (*bridge.Executor, *countingOpener) {
	t.Helper()
	root := t.TempDir()
	catalogtest.NewSQLite(t, root, "california_schools", catalogtest.CaliforniaSchools...)
	opener := &countingOpener{cat: catalog.New(config.DatabasesConfig{Root: root})}
	return bridge.NewExecutor(opener, nil), opener
}

func record(id int, sqlText string) dataset.QuestionRecord {
	return dataset.QuestionRecord{
		ID:        id,
		DBID:      "california_schools",
		Question:  dataset.StringPtr("q"),
		SQLAnswer: dataset.StringPtr(sqlText),
		DocType:   dataset.StringPtr(dataset.DocTypeTargeted),
	}
}

func assertAllClosed(t *testing.T, opener *countingOpener) {
	t.Helper()
	for _, db := range opener.opened {
		// Ping on a closed handle reports sql: database is closed
		assert.Error(t, db.Ping())
	}
}

func TestExecuteAttachesSingleRow(t *testing.T) {
	exec, opener := newExecutor(t)

	got, ok := exec.Execute(context.Background(), record(0,
		"SELECT District FROM schools JOIN satscores ON CDSCode=cds ORDER BY AvgScrRead DESC LIMIT 1"))
	require.True(t, ok)

	data, err := json.Marshal(got.Instance)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"District":"Example Unified"}]`, string(data))
	assert.Equal(t, 0, got.ID)
	assertAllClosed(t, opener)
}

func TestExecutePreservesColumnOrder(t *testing.T) {
	exec, _ := newExecutor(t)

	got, ok := exec.Execute(context.Background(), record(1,
		"SELECT AvgScrRead, cds FROM satscores ORDER BY cds"))
	require.True(t, ok)
	require.Len(t, got.Instance, 2)

	want := dataset.NewRow([]string{"AvgScrRead", "cds"}, []any{int64(640), "001"})
	if diff := cmp.Diff(want, got.Instance[0]); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteSkips(t *testing.T) {
	exec, opener := newExecutor(t)
	ctx := context.Background()

	cases := map[string]dataset.QuestionRecord{
		"missing column": record(2, "SELECT NoSuchColumn FROM schools"),
		"empty result":   record(3, "SELECT District FROM schools WHERE 1 = 0"),
		"write attempt":  record(4, "DELETE FROM schools"),
		"no sql":         {ID: 5, DBID: "california_schools"},
		"no db":          {ID: 6, SQLAnswer: dataset.StringPtr("SELECT 1")},
		"unknown db":     {ID: 7, DBID: "ghost", SQLAnswer: dataset.StringPtr("SELECT 1")},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := exec.Execute(ctx, rec)
			assert.False(t, ok)
		})
	}
	assertAllClosed(t, opener)

	// the read-only handle kept the fixture intact
	got, ok := exec.Execute(ctx, record(8, "SELECT COUNT(*) AS n FROM schools"))
	require.True(t, ok)
	v, _ := got.Instance[0].Get("n")
	assert.Equal(t, json.Number("2"), v)
}

func TestExecutedCollectionShrinksBySkips(t *testing.T) {
	exec, _ := newExecutor(t)
	inputs := []dataset.QuestionRecord{
		record(0, "SELECT District FROM schools LIMIT 1"),
		record(1, "SELECT Nope FROM schools"),
		record(2, "SELECT cds FROM satscores"),
	}

	var kept []dataset.BridgedRecord
	for _, in := range inputs {
		if out, ok := exec.Execute(context.Background(), in); ok {
			kept = append(kept, out)
		}
	}
	assert.Len(t, kept, len(inputs)-1)
	for _, k := range kept {
		assert.NotEqual(t, 1, k.ID)
		assert.True(t, k.Viable())
	}
}

func TestQueryIsReproducible(t *testing.T) {
	exec, _ := newExecutor(t)
	q := "SELECT CDSCode, District FROM schools ORDER BY CDSCode"

	first, err := exec.Query(context.Background(), "california_schools", q)
	require.NoError(t, err)
	second, err := exec.Query(context.Background(), "california_schools", q)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(first, second))
}
