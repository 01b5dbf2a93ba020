package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ":memory:", cfg.DataPath)
	assert.Equal(t, 10, cfg.MaxPathDepth)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LEANGRAPH_DATA_PATH", "/tmp/leangraph.db")
	t.Setenv("LEANGRAPH_MAX_PATH_DEPTH", "5")
	t.Setenv("LEANGRAPH_UNWIND_BATCH_SIZE", "not-a-number")

	cfg := LoadFromEnv()
	assert.Equal(t, "/tmp/leangraph.db", cfg.DataPath)
	assert.Equal(t, 5, cfg.MaxPathDepth)
	assert.Equal(t, 500, cfg.UnwindBatchSize, "invalid env value falls back to default")
}

func TestLoadFromFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leangraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_path_depth: 25\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxPathDepth)
	assert.Equal(t, ":memory:", cfg.DataPath, "fields absent from the file keep the env-derived value")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.MaxPathDepth = 0
	assert.Error(t, cfg.Validate())
}
