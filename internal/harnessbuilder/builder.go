package harnessbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/uci-puzzle-harness/internal/chess/uci"
	"github.com/park285/uci-puzzle-harness/internal/config"
	"github.com/park285/uci-puzzle-harness/internal/domain"
	"github.com/park285/uci-puzzle-harness/internal/harness"
	"github.com/park285/uci-puzzle-harness/internal/msgcat"
	"github.com/park285/uci-puzzle-harness/internal/notify"
	"github.com/park285/uci-puzzle-harness/internal/obslog"
	"github.com/park285/uci-puzzle-harness/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink is an optional destination for a finished run. Its failure is logged
// and never changes the exit status.
type Sink struct {
	Name     string
	Recorder store.Recorder
}

type Deps struct {
	Config   *config.AppConfig
	Output   store.CSVFile
	Repo     *store.Repository
	Redis    *redis.Client
	Index    *store.RedisIndex
	Webhook  *notify.Webhook
	Messages *msgcat.Catalog
	Sinks    []Sink

	logger *zap.Logger
}

// New opens every configured collaborator. Nothing here touches the engine.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = obslog.L()
	}

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d := &Deps{
		Config:   cfg,
		Output:   store.CSVFile{Path: cfg.OutputPath},
		Messages: messages,
		logger:   logger,
	}

	if err := d.openStores(ctx); err != nil {
		d.Close()
		return nil, err
	}

	if strings.TrimSpace(cfg.WebhookURL) != "" {
		d.Webhook = notify.NewWebhook(cfg.WebhookURL, notify.WithHeaderProvider(func() map[string]string {
			return map[string]string{"User-Agent": "puzzle-harness"}
		}))
		d.Sinks = append(d.Sinks, Sink{Name: "webhook", Recorder: d.Webhook})
	}
	return d, nil
}

// OpenStores is New without the output table or webhook, for read-only commands.
func OpenStores(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if logger == nil {
		logger = obslog.L()
	}
	d := &Deps{Config: cfg, logger: logger}
	if err := d.openStores(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) openStores(ctx context.Context) error {
	cfg := d.Config
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := store.OpenRepository(pingCtx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("init repository: %w", err)
		}
		d.Repo = repo
		d.Sinks = append(d.Sinks, Sink{Name: "repository", Recorder: repo})
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := store.DialRedis(pingCtx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		d.Redis = rdb
		d.Index = store.NewRedisIndex(rdb, cfg.RedisPrefix, 0)
		d.Sinks = append(d.Sinks, Sink{Name: "redis", Recorder: d.Index})
	}
	return nil
}

func BatchConfig(cfg *config.AppConfig) harness.BatchConfig {
	return harness.BatchConfig{
		CorpusPath:    cfg.CorpusPath,
		EnginePath:    cfg.EnginePath,
		Count:         cfg.PuzzleCount,
		Seed:          cfg.Seed,
		MinPopularity: cfg.MinPopularity,
		MinRating:     cfg.MinRating,
	}
}

// Launcher starts the configured engine binary as a child process.
func Launcher(cfg *config.AppConfig, logger *zap.Logger) harness.Launcher {
	if logger == nil {
		logger = obslog.L()
	}
	return func(ctx context.Context) (harness.Engine, error) {
		proc, err := uci.Start(ctx, cfg.EnginePath, uci.ProcessOptions{SearchTimeout: cfg.SearchTimeout})
		if err != nil {
			return nil, err
		}
		logger.Info("engine_started", zap.String("path", cfg.EnginePath), zap.Int("pid", proc.Pid()))
		if logger.Core().Enabled(zap.DebugLevel) {
			t := proc.Transport()
			t.OnSend = func(line string) { logger.Debug("uci_send", zap.String("line", line)) }
			t.OnReceive = func(line string) { logger.Debug("uci_recv", zap.String("line", line)) }
		}
		return proc, nil
	}
}

// Publish writes the results table, then offers the run to every optional sink.
func (d *Deps) Publish(ctx context.Context, run domain.Run) error {
	if err := d.Output.Record(ctx, run); err != nil {
		return fmt.Errorf("write %s: %w", d.Output.Path, err)
	}
	d.logger.Info("results_written", zap.String("path", d.Output.Path), zap.Int("rows", len(run.Results)))

	for _, s := range d.Sinks {
		if err := s.Recorder.Record(ctx, run); err != nil {
			d.logger.Warn("sink_failed", zap.String("sink", s.Name), zap.String("run_id", run.ID), zap.Error(err))
			continue
		}
		d.logger.Debug("sink_recorded", zap.String("sink", s.Name), zap.String("run_id", run.ID))
	}
	return nil
}

func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Repo != nil {
		errs = append(errs, d.Repo.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}
