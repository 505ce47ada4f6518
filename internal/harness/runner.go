package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/park285/uci-puzzle-harness/internal/corpus"
	"github.com/park285/uci-puzzle-harness/internal/domain"
	"github.com/park285/uci-puzzle-harness/internal/obslog"
	"go.uber.org/zap"
)

// Engine is a Searcher whose process the batch owns and must release.
type Engine interface {
	Searcher
	Close() error
}

// Launcher starts the engine. It is called only after the corpus is loaded
// and sampled, so a bad corpus never spawns a process.
type Launcher func(ctx context.Context) (Engine, error)

type BatchConfig struct {
	CorpusPath    string
	EnginePath    string
	Count         int
	Seed          int64
	MinPopularity int
	MinRating     int
}

// Runner plays puzzles one after another against a single engine.
type Runner struct {
	engine Searcher
	logger *zap.Logger
	now    func() time.Time

	// OnResult, if set, sees every result as soon as its session ends.
	OnResult func(index, total int, res domain.SessionResult)
}

func NewRunner(engine Searcher, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = obslog.L()
	}
	return &Runner{engine: engine, logger: logger, now: time.Now}
}

// Run plays every puzzle in order. Per-puzzle failures are recorded and the
// batch continues; a search error stops it and the partial run is returned.
func (r *Runner) Run(ctx context.Context, run domain.Run, puzzles []domain.Puzzle) (domain.Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now()
	}
	run.Results = make([]domain.SessionResult, 0, len(puzzles))

	for i, p := range puzzles {
		if err := ctx.Err(); err != nil {
			return r.finish(run), err
		}

		res, err := NewSession(r.engine, p, r.logger).Play(ctx)
		if err != nil {
			return r.finish(run), err
		}
		run.Results = append(run.Results, res)
		run.Total++
		if res.Success {
			run.Solved++
		}

		r.logger.Info("puzzle_done",
			zap.String("run_id", run.ID),
			zap.Int("index", i+1),
			zap.Int("total", len(puzzles)),
			zap.String("puzzle", p.ID),
			zap.String("state", res.State),
			zap.Bool("success", res.Success),
			zap.Int("requests", res.Requests),
			zap.String("engine_moves", res.EngineMovesString()),
		)
		if r.OnResult != nil {
			r.OnResult(i, len(puzzles), res)
		}
	}
	return r.finish(run), nil
}

func (r *Runner) finish(run domain.Run) domain.Run {
	run.FinishedAt = r.now()
	return run
}

// RunBatch loads and samples the corpus, starts the engine, plays the sample
// and always releases the engine before returning.
func RunBatch(ctx context.Context, cfg BatchConfig, launch Launcher, logger *zap.Logger) (domain.Run, error) {
	if logger == nil {
		logger = obslog.L()
	}

	all, err := corpus.LoadFile(cfg.CorpusPath)
	if err != nil {
		return domain.Run{}, fmt.Errorf("load corpus: %w", err)
	}
	sample, err := corpus.Select(all, corpus.Selection{
		MinPopularity: cfg.MinPopularity,
		MinRating:     cfg.MinRating,
		Count:         cfg.Count,
		Seed:          cfg.Seed,
	})
	if err != nil {
		return domain.Run{}, fmt.Errorf("select puzzles: %w", err)
	}
	logger.Info("corpus_loaded",
		zap.String("path", cfg.CorpusPath),
		zap.Int("rows", len(all)),
		zap.Int("sampled", len(sample)),
		zap.Int64("seed", cfg.Seed),
	)

	engine, err := launch(ctx)
	if err != nil {
		return domain.Run{}, fmt.Errorf("launch engine: %w", err)
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			logger.Warn("engine_close", zap.Error(cerr))
		}
	}()

	return NewRunner(engine, logger).Run(ctx, domain.Run{
		EnginePath:    cfg.EnginePath,
		Seed:          cfg.Seed,
		MinPopularity: cfg.MinPopularity,
		MinRating:     cfg.MinRating,
		Requested:     cfg.Count,
	}, sample)
}
