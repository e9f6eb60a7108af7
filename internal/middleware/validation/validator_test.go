package validation

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CedricPei/MAS-RAG/internal/generator"
	"github.com/CedricPei/MAS-RAG/internal/pipeline"
)

func runApp(captured *RunRequest) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{}))
	app.Post("/runs", RunRequestMiddleware(Config{MaxCount: 10}), func(c *fiber.Ctx) error {
		req, ok := RunRequestFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		*captured = req
		return c.SendStatus(fiber.StatusAccepted)
	})
	return app
}

func post(t *testing.T, app *fiber.App, body, contentType string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/runs", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func TestRunRequestAccepted(t *testing.T) {
	var got RunRequest
	app := runApp(&got)

	status := post(t, app, `{"mode":"collection","db_ids":["california_schools"],"count":3,"stages":["execute","generate"]}`, "application/json")
	require.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, generator.ModeCollection, got.Mode)
	assert.Equal(t, []string{"california_schools"}, got.DBIDs)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, []pipeline.Stage{pipeline.StageGenerate, pipeline.StageExecute}, got.Stages)
}

func TestRunRequestEmptyBodyUsesDefaults(t *testing.T) {
	var got RunRequest
	app := runApp(&got)

	require.Equal(t, fiber.StatusAccepted, post(t, app, "", ""))
	assert.Equal(t, RunRequest{}, got)
}

func TestRunRequestRejected(t *testing.T) {
	var got RunRequest
	app := runApp(&got)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"mode":`},
		{"bad mode", `{"mode":"freeform"}`},
		{"path traversal", `{"db_ids":["../etc"]}`},
		{"count too large", `{"count":11}`},
		{"negative count", `{"count":-1}`},
		{"bad stage", `{"stages":["index"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, fiber.StatusBadRequest, post(t, app, tt.body, "application/json"))
		})
	}
}

func TestUnsupportedContentType(t *testing.T) {
	var got RunRequest
	app := runApp(&got)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, post(t, app, "x", "text/plain"))
}

func TestDatasetParams(t *testing.T) {
	app := fiber.New()
	app.Get("/datasets/:db_id/:artifact", DatasetParams(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for path, want := range map[string]int{
		"/datasets/california_schools/documents":           fiber.StatusOK,
		"/datasets/california_schools/bridged?mode=open":   fiber.StatusOK,
		"/datasets/california_schools/other":               fiber.StatusNotFound,
		"/datasets/-bad/questions":                         fiber.StatusBadRequest,
		"/datasets/california_schools/questions?mode=nope": fiber.StatusBadRequest,
	} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestValidDBID(t *testing.T) {
	assert.True(t, ValidDBID("california_schools"))
	assert.True(t, ValidDBID("db-2.v1"))
	assert.False(t, ValidDBID(""))
	assert.False(t, ValidDBID("a/b"))
	assert.False(t, ValidDBID("a..b"))
}
