package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CedricPei/MAS-RAG/internal/api/handlers"
	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/generator"
	"github.com/CedricPei/MAS-RAG/internal/pipeline"
	"github.com/CedricPei/MAS-RAG/internal/progress"
	"github.com/CedricPei/MAS-RAG/internal/storage/models"
	"github.com/CedricPei/MAS-RAG/internal/storage/sqlite"
	"github.com/CedricPei/MAS-RAG/pkg/config"
)

type staticLister []string

func (l staticLister) List() ([]string, error) { return l, nil }

// blockingRunner holds every run until release is closed.
type blockingRunner struct {
	started chan pipeline.Plan
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, plan pipeline.Plan) (pipeline.Summary, error) {
	r.started <- plan
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return pipeline.Summary{RunID: plan.RunID}, nil
}

type fixture struct {
	server *Server
	runs   *handlers.RunHandler
	runner *blockingRunner
	ledger *sqlite.Client
	output string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ledger, err := sqlite.NewClient(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, ledger.InitSchema())
	t.Cleanup(func() { ledger.Close() })

	output := t.TempDir()
	runner := &blockingRunner{started: make(chan pipeline.Plan, 1), release: make(chan struct{})}
	runs := handlers.NewRunHandler(context.Background(), runner, ledger, handlers.RunDefaults{
		Mode:  generator.ModeTargeted,
		DBIDs: []string{"california_schools"},
		Count: 5,
	}, nil)
	hub := progress.NewHub(0)

	srv := NewServer(Deps{
		Server: config.ServerConfig{
			BodyLimit:            1 << 20,
			MaxRequestsPerMinute: 100,
			Development:          true,
		},
		Datasets: handlers.NewDatasetHandler(staticLister{"california_schools", "financial"}, output, generator.ModeTargeted, nil),
		Runs:     runs,
		Progress: handlers.NewProgressHandler(hub, nil),
	})
	t.Cleanup(func() {
		select {
		case <-runner.release:
		default:
			close(runner.release)
		}
		_ = srv.Shutdown(runs)
		hub.Close()
	})

	return &fixture{server: srv, runs: runs, runner: runner, ledger: ledger, output: output}
}

func (f *fixture) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := f.server.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(body) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(body, &out)
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := f.server.App.Test(httptest.NewRequest("GET", "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestListDatabases(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, httptest.NewRequest("GET", "/api/v1/databases", nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
}

func TestGetArtifact(t *testing.T) {
	f := newFixture(t)
	layout := dataset.Layout{Root: f.output, Prefix: string(generator.ModeCollection)}
	path := layout.Documents("california_schools")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":0,"document":"text"}]`), 0o644))

	resp, err := f.server.App.Test(httptest.NewRequest("GET", "/api/v1/datasets/california_schools/documents?mode=collection", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":0,"document":"text"}]`, string(body))

	status, _ := f.do(t, httptest.NewRequest("GET", "/api/v1/datasets/california_schools/documents", nil))
	assert.Equal(t, fiber.StatusNotFound, status, "targeted artifact was never written")

	status, _ = f.do(t, httptest.NewRequest("GET", "/api/v1/datasets/california_schools/schema", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestStartRunIsSingleFlight(t *testing.T) {
	f := newFixture(t)

	post := func() *http.Request {
		req := httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(`{"count":2,"stages":["generate"]}`))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	status, body := f.do(t, post())
	require.Equal(t, fiber.StatusAccepted, status)
	runID, _ := body["run_id"].(string)
	require.NotEmpty(t, runID)

	var plan pipeline.Plan
	select {
	case plan = <-f.runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started")
	}
	assert.Equal(t, runID, plan.RunID)
	assert.Equal(t, generator.ModeTargeted, plan.Mode)
	assert.Equal(t, []string{"california_schools"}, plan.DBIDs)
	assert.Equal(t, 2, plan.Count)
	assert.Equal(t, []pipeline.Stage{pipeline.StageGenerate}, plan.Stages)

	status, body = f.do(t, post())
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, runID, body["active_run_id"])

	close(f.runner.release)
	f.runs.Wait()
	assert.Empty(t, f.runs.Active())
}

func TestStartRunRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(`{"mode":"freeform"}`))
	req.Header.Set("Content-Type", "application/json")

	status, _ := f.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Empty(t, f.runs.Active())
}

func TestRunsFromLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.StartRun(ctx, models.Run{
		ID:        "run-1",
		Mode:      "targeted",
		Stages:    []string{"generate"},
		DBIDs:     []string{"california_schools"},
		Count:     1,
		StartedAt: time.Unix(1700000000, 0),
	}))

	status, body := f.do(t, httptest.NewRequest("GET", "/api/v1/runs", nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body = f.do(t, httptest.NewRequest("GET", "/api/v1/runs/run-1", nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "run-1", body["id"])

	status, _ = f.do(t, httptest.NewRequest("GET", "/api/v1/runs/missing", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestProgressRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, httptest.NewRequest("GET", "/ws/progress", nil))
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
}
