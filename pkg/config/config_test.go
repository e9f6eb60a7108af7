package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "targeted", cfg.Pipeline.Mode)
	assert.Equal(t, 5, cfg.Pipeline.Count)
	assert.Equal(t, []string{"generate", "execute", "synthesize"}, cfg.Pipeline.Stages)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Milvus.ChunkSize)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  mode: open
  dbIds: [california_schools, financial]
databases:
  root: /data/dev_databases
  overrides:
    - id: warehouse
      driver: postgres
      dsn: postgres://localhost/warehouse
`)
	t.Setenv("MAS_RAG_PIPELINE_COUNT", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "open", cfg.Pipeline.Mode)
	assert.Equal(t, []string{"california_schools", "financial"}, cfg.Pipeline.DBIDs)
	assert.Equal(t, 9, cfg.Pipeline.Count)
	assert.Equal(t, "/data/dev_databases", cfg.Databases.Root)
	require.Len(t, cfg.Databases.Overrides, 1)
	assert.Equal(t, "postgres", cfg.Databases.Overrides[0].Driver)
}

func TestWithFlagsOverridesOnlyWhenSet(t *testing.T) {
	path := writeConfig(t, "pipeline:\n  mode: open\n")

	fs := pflag.NewFlagSet("synth", pflag.ContinueOnError)
	fs.String("mode", "", "")
	fs.Int("count", 0, "")
	require.NoError(t, fs.Parse([]string{"--mode", "collection"}))

	cfg, err := Load(path, WithFlags(fs, map[string]string{
		"mode":    "pipeline.mode",
		"count":   "pipeline.count",
		"missing": "pipeline.outputDir",
	}))
	require.NoError(t, err)

	assert.Equal(t, "collection", cfg.Pipeline.Mode)
	assert.Equal(t, 5, cfg.Pipeline.Count)
	assert.Equal(t, "./dataset", cfg.Pipeline.OutputDir)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "pipeline: [unterminated\n"))
	assert.Error(t, err)
}
