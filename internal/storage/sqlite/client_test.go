package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CedricPei/MAS-RAG/internal/storage/models"
)

func newLedger(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema())
	return c
}

func TestRunLifecycle(t *testing.T) {
	c := newLedger(t)
	ctx := context.Background()
	start := time.Unix(1700000000, 0)

	require.NoError(t, c.StartRun(ctx, models.Run{
		ID:        "run-1",
		Mode:      "targeted",
		Stages:    []string{"generate", "execute"},
		DBIDs:     []string{"california_schools"},
		Count:     5,
		StartedAt: start,
	}))

	rd := models.RunDatabase{RunID: "run-1", DBID: "california_schools", State: "generating", Generated: 2, UpdatedAt: start}
	require.NoError(t, c.RecordDatabase(ctx, rd))
	rd.State, rd.Generated, rd.Executed, rd.Skipped = "done", 5, 4, 1
	require.NoError(t, c.RecordDatabase(ctx, rd))

	require.NoError(t, c.FinishRun(ctx, "run-1", models.RunSucceeded, "", start.Add(time.Minute)))

	run, err := c.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, run.Status)
	assert.Equal(t, []string{"generate", "execute"}, run.Stages)
	require.NotNil(t, run.FinishedAt)
	require.Len(t, run.Databases, 1)
	assert.Equal(t, "done", run.Databases[0].State)
	assert.Equal(t, 4, run.Databases[0].Executed)
	assert.Equal(t, 1, run.Databases[0].Skipped)
}

func TestListRunsNewestFirst(t *testing.T) {
	c := newLedger(t)
	ctx := context.Background()

	for i, id := range []string{"old", "new"} {
		require.NoError(t, c.StartRun(ctx, models.Run{ID: id, Mode: "open", StartedAt: time.Unix(int64(1000+i), 0)}))
	}

	runs, err := c.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, models.RunRunning, runs[1].Status)
}

func TestUnknownRun(t *testing.T) {
	c := newLedger(t)
	ctx := context.Background()

	_, err := c.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, c.FinishRun(ctx, "missing", models.RunFailed, "x", time.Now()), ErrRunNotFound)
}

func TestVerificationReports(t *testing.T) {
	c := newLedger(t)
	ctx := context.Background()

	id, err := c.InsertVerification(ctx, models.VerificationReport{
		DBID: "db", Artifact: "documents", Checked: 3, Failed: 1, Summary: "1 leak", CreatedAt: time.Unix(5, 0),
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	reports, err := c.ListVerifications(ctx, "db")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "1 leak", reports[0].Summary)
}
