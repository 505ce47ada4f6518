package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HARNESS_CONFIG", "ENGINE_PATH", "HARNESS_SEARCH_TIMEOUT", "PUZZLE_CORPUS", "PUZZLE_OUTPUT",
		"PUZZLE_COUNT", "PUZZLE_MIN_POPULARITY", "PUZZLE_MIN_RATING", "PUZZLE_SEED",
		"DATABASE_URL", "REDIS_URL", "REDIS_PREFIX", "WEBHOOK_URL", "MESSAGES_DIR",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harness.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.PuzzleCount)
	assert.Equal(t, 20, cfg.MinPopularity)
	assert.Equal(t, 2000, cfg.MinRating)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "scripts/lichess_db_puzzle.csv", cfg.CorpusPath)
	assert.Equal(t, "puzzle_results.csv", cfg.OutputPath)
	assert.Zero(t, cfg.SearchTimeout)
	assert.Empty(t, cfg.EnginePath)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
engine_path: /opt/engine
search_timeout: 30s
puzzle_count: 10
min_rating: 2200
redis_url: redis://localhost:6379/1
`)
	t.Setenv("PUZZLE_COUNT", "25")
	t.Setenv("REDIS_PREFIX", "nightly")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/engine", cfg.EnginePath)
	assert.Equal(t, 30*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 25, cfg.PuzzleCount)
	assert.Equal(t, 2200, cfg.MinRating)
	assert.Equal(t, 20, cfg.MinPopularity)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, "nightly", cfg.RedisPrefix)
}

func TestLoadFileFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("HARNESS_CONFIG", writeFile(t, "seed: 7\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
}

func TestLoadEmptyFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "unknown_key: 1\n"))
	assert.Error(t, err)

	t.Setenv("HARNESS_SEARCH_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "HARNESS_SEARCH_TIMEOUT")
}

func TestInvalidNumericEnvIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("PUZZLE_COUNT", "abc")
	t.Setenv("PUZZLE_MIN_RATING", "x")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPuzzleCount, cfg.PuzzleCount)
	assert.Equal(t, DefaultMinRating, cfg.MinRating)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.ErrorContains(t, cfg.Validate(), "engine path")

	cfg.EnginePath = "/opt/engine"
	assert.NoError(t, cfg.Validate())

	cfg.PuzzleCount = 0
	assert.Error(t, cfg.Validate())

	cfg.PuzzleCount = 5
	cfg.SearchTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}
