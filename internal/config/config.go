package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	DefaultPuzzleCount   = 100
	DefaultMinPopularity = 20
	DefaultMinRating     = 2000
	DefaultSeed          = 42
)

// AppConfig is resolved from defaults, then an optional YAML file, then the
// environment. CLI flags are applied last by the caller.
type AppConfig struct {
	EnginePath    string        `yaml:"engine_path"`
	SearchTimeout time.Duration `yaml:"search_timeout"`

	CorpusPath    string `yaml:"corpus_path"`
	OutputPath    string `yaml:"output_path"`
	PuzzleCount   int    `yaml:"puzzle_count"`
	MinPopularity int    `yaml:"min_popularity"`
	MinRating     int    `yaml:"min_rating"`
	Seed          int64  `yaml:"seed"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
	WebhookURL  string `yaml:"webhook_url"`

	MessagesDir string `yaml:"messages_dir"`
}

func Defaults() *AppConfig {
	return &AppConfig{
		CorpusPath:    "scripts/lichess_db_puzzle.csv",
		OutputPath:    "puzzle_results.csv",
		PuzzleCount:   DefaultPuzzleCount,
		MinPopularity: DefaultMinPopularity,
		MinRating:     DefaultMinRating,
		Seed:          DefaultSeed,
		RedisPrefix:   "puzzles",
	}
}

// Load resolves the configuration. An empty path falls back to HARNESS_CONFIG;
// with neither set no file is read.
func Load(path string) (*AppConfig, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("HARNESS_CONFIG"))
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("ENGINE_PATH")); v != "" {
		c.EnginePath = v
	}
	if v := strings.TrimSpace(os.Getenv("HARNESS_SEARCH_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HARNESS_SEARCH_TIMEOUT: %w", err)
		}
		c.SearchTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_CORPUS")); v != "" {
		c.CorpusPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_OUTPUT")); v != "" {
		c.OutputPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.PuzzleCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_MIN_POPULARITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MinPopularity = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_MIN_RATING")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MinRating = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = n
		}
	}

	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = envOr("REDIS_URL", c.RedisURL)
	c.RedisPrefix = envOr("REDIS_PREFIX", c.RedisPrefix)
	c.WebhookURL = envOr("WEBHOOK_URL", c.WebhookURL)
	c.MessagesDir = envOr("MESSAGES_DIR", c.MessagesDir)
	return nil
}

func envOr(key, current string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return current
}

// Validate checks what a run needs before anything is opened.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.EnginePath) == "" {
		return errors.New("engine path is required (--engine or ENGINE_PATH)")
	}
	if strings.TrimSpace(c.CorpusPath) == "" {
		return errors.New("corpus path is required")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return errors.New("output path is required")
	}
	if c.PuzzleCount <= 0 {
		return fmt.Errorf("puzzle count must be > 0: %d", c.PuzzleCount)
	}
	if c.SearchTimeout < 0 {
		return fmt.Errorf("search timeout must be >= 0: %s", c.SearchTimeout)
	}
	return nil
}
